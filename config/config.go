// Package config loads process configuration from an optional YAML file and
// CREDAUTH_ prefixed environment variables.
package config

import (
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"

	oa "github.com/panyam/credauth"
)

// EnvPrefix is stripped from environment variables before they are mapped
// onto config keys, e.g. CREDAUTH_AUTH_SESSIONTTL -> auth.sessionTTL
const EnvPrefix = "CREDAUTH_"

type Config struct {
	Log struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	HTTP struct {
		Bind string `yaml:"bind" validate:"required"`
	} `yaml:"http"`

	// gRPC listener; empty Bind leaves it off
	GRPC struct {
		Bind string `yaml:"bind"`
	} `yaml:"grpc"`

	Auth     AuthConfig     `yaml:"auth"`
	Store    StoreConfig    `yaml:"store"`
	Sessions SessionsConfig `yaml:"sessions"`
	OAuth    OAuthConfig    `yaml:"oauth"`
}

type AuthConfig struct {
	Strategy           string        `yaml:"strategy" validate:"oneof=plaintext reversible unsalted-hash salted-hash"`
	Secret             string        `yaml:"secret"`
	WorkFactor         int           `yaml:"workFactor" validate:"gte=0,lte=31"`
	SessionTTL         time.Duration `yaml:"sessionTTL" validate:"gt=0"`
	OpTimeout          time.Duration `yaml:"opTimeout" validate:"gt=0"`
	LoginAfterRegister bool          `yaml:"loginAfterRegister"`
}

type StoreConfig struct {
	Driver    string `yaml:"driver" validate:"oneof=memory fs sqlite postgres datastore mongo"`
	DSN       string `yaml:"dsn" validate:"required_if=Driver postgres,required_if=Driver mongo"`
	Path      string `yaml:"path" validate:"required_if=Driver fs"`
	Project   string `yaml:"project" validate:"required_if=Driver datastore"`
	Namespace string `yaml:"namespace"`
	Database  string `yaml:"database"`
}

type SessionsConfig struct {
	Driver string `yaml:"driver" validate:"oneof=scs cache"`
}

type OAuthConfig struct {
	BaseURL string         `yaml:"baseURL" validate:"omitempty,url"`
	Google  ProviderConfig `yaml:"google"`
	GitHub  ProviderConfig `yaml:"github"`
}

// ProviderConfig holds one OAuth client registration.  A provider with no
// client id is not mounted.
type ProviderConfig struct {
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret" validate:"required_with=ClientID"`
}

func (p ProviderConfig) Enabled() bool {
	return p.ClientID != ""
}

// defaults are loaded first so env keys can be aligned with their camelCase
// spelling
var defaults = map[string]any{
	"log.level":                 "info",
	"log.pretty":                false,
	"http.bind":                 "127.0.0.1:3000",
	"grpc.bind":                 "",
	"auth.strategy":             string(oa.StrategySaltedHash),
	"auth.secret":               "",
	"auth.workFactor":           oa.DefaultWorkFactor,
	"auth.sessionTTL":           oa.DefaultSessionTTL.String(),
	"auth.opTimeout":            oa.DefaultOpTimeout.String(),
	"auth.loginAfterRegister":   false,
	"store.driver":              "memory",
	"store.dsn":                 "",
	"store.path":                "",
	"store.project":             "",
	"store.namespace":           "",
	"store.database":            "credauth",
	"sessions.driver":           "scs",
	"oauth.baseURL":             "",
	"oauth.google.clientId":     "",
	"oauth.google.clientSecret": "",
	"oauth.github.clientId":     "",
	"oauth.github.clientSecret": "",
}

// Load reads defaults, then path (if non-empty), then the environment, and
// validates the result.  Any problem is reported as oa.ErrConfiguration.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, errors.Wrapf(oa.ErrConfiguration, "default %s: %v", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(oa.ErrConfiguration, "config file %s: %v", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(oa.ErrConfiguration, "read %s: %v", path, err)
		}
	}

	existing := k.Raw()
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return canonicalizeEnvKey(strings.TrimPrefix(key, EnvPrefix), existing), value
		},
	}), nil); err != nil {
		return nil, errors.Wrapf(oa.ErrConfiguration, "load env: %v", err)
	}

	cfg := new(Config)
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			TagName:          "yaml",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(oa.ErrConfiguration, "unmarshal: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints plus the cross-field rules the tags
// cannot express
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return errors.Wrapf(oa.ErrConfiguration, "%v", err)
	}
	if c.Auth.Strategy == string(oa.StrategyReversible) && c.Auth.Secret == "" {
		return errors.Wrap(oa.ErrConfiguration, "auth.secret is required for the reversible strategy")
	}
	if (c.OAuth.Google.Enabled() || c.OAuth.GitHub.Enabled()) && c.OAuth.BaseURL == "" {
		return errors.Wrap(oa.ErrConfiguration, "oauth.baseURL is required when a provider is configured")
	}
	return nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}
		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}
	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}
		child, _ := value.(map[string]any)
		return key, child, true
	}
	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}
	return normalized.String()
}
