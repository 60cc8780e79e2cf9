package serve

import (
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	oa "github.com/panyam/credauth"
	"github.com/panyam/credauth/config"
	authgrpc "github.com/panyam/credauth/grpc"
	"github.com/panyam/credauth/internal/bootstrap"
	"github.com/panyam/credauth/internal/cmdflags"
	"github.com/panyam/credauth/internal/httpserver"
	"github.com/panyam/credauth/oauth2"
)

func Cmd() *cli.Command {
	var configFile string
	var bind string
	var jwtSecret string
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web app (and the gRPC listener when grpc.bind is set)",
		Flags: []cli.Flag{
			cmdflags.ConfigFile(&configFile),
			&cli.StringFlag{
				Name:        "bind",
				Usage:       "Overrides http.bind",
				Destination: &bind,
			},
			&cli.StringFlag{
				Name:        "jwt-secret",
				Usage:       "Key signing session cookies; random per process when empty",
				EnvVars:     []string{"CREDAUTH_JWT_SECRET"},
				Destination: &jwtSecret,
			},
		},
		Action: func(cctx *cli.Context) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.HTTP.Bind = bind
			}
			ctx, rt, err := bootstrap.Open(cctx.Context, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			app, err := NewApp(rt.Verifier, cfg, jwtSecret)
			if err != nil {
				return err
			}
			rt.Log.Info().Strs("providers", app.ProviderNames()).Msg("Web app configured")

			group, ctx := errgroup.WithContext(ctx)
			group.Go(func() error {
				return httpserver.Serve(ctx, cfg.HTTP.Bind, app.Handler())
			})
			if cfg.GRPC.Bind != "" {
				server := NewGRPCServer(rt.Verifier)
				group.Go(func() error {
					return httpserver.ServeGRPC(ctx, cfg.GRPC.Bind, server)
				})
			}
			return group.Wait()
		},
	}
}

// NewApp builds the web app and mounts the providers that have credentials
func NewApp(verifier *oa.Verifier, cfg *config.Config, jwtSecret string) (*oa.App, error) {
	app := &oa.App{Verifier: verifier, JWTSecretKey: jwtSecret}
	app.Local = &oa.LocalAuth{LoginAfterRegister: cfg.Auth.LoginAfterRegister}
	app.EnsureDefaults()

	base := strings.TrimSuffix(cfg.OAuth.BaseURL, "/")
	if p := cfg.OAuth.Google; p.Enabled() {
		google, err := oauth2.NewGoogleOAuth2(p.ClientID, p.ClientSecret, base+"/auth/google/callback/", app.SaveUserAndRedirect)
		if err != nil {
			return nil, err
		}
		app.AddProvider("google", google)
	}
	if p := cfg.OAuth.GitHub; p.Enabled() {
		github, err := oauth2.NewGithubOAuth2(p.ClientID, p.ClientSecret, base+"/auth/github/callback/", app.SaveUserAndRedirect)
		if err != nil {
			return nil, err
		}
		app.AddProvider("github", github)
	}
	return app, nil
}

// NewGRPCServer authenticates every call except health checks with the
// session token in the authorization metadata
func NewGRPCServer(verifier *oa.Verifier) *grpc.Server {
	interceptors := authgrpc.NewInterceptorConfig(verifier,
		healthpb.Health_Check_FullMethodName,
		healthpb.Health_Watch_FullMethodName,
	)
	server := grpc.NewServer(
		grpc.UnaryInterceptor(authgrpc.UnaryAuthInterceptor(interceptors)),
		grpc.StreamInterceptor(authgrpc.StreamAuthInterceptor(interceptors)),
	)
	healthpb.RegisterHealthServer(server, health.NewServer())
	return server
}
