// Package httpserver runs listeners until their context is cancelled, then
// shuts them down gracefully.
package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/grpc"

	"github.com/panyam/credauth/internal/logutil"
)

// ShutdownTimeout bounds the graceful shutdown of a server
var ShutdownTimeout = 30 * time.Second

// Serve runs handler on bind until ctx is done.  Requests inherit ctx so the
// process logger reaches every handler.
func Serve(ctx context.Context, bind string, handler http.Handler) error {
	lis, err := net.Listen("tcp", bind)
	if err != nil {
		return errors.Wrapf(err, "listen %s", bind)
	}
	return ServeListener(ctx, lis, handler)
}

// ServeListener is Serve on an already bound listener
func ServeListener(ctx context.Context, lis net.Listener, handler http.Handler) error {
	server := &http.Server{
		Handler:           handler,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute * 5,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	log := logutil.GetOrDefault(ctx).With().Str("server.addr", lis.Addr().String()).Logger()

	firstErr := make(chan error, 1)
	go func() {
		defer close(firstErr)
		log.Info().Msg("Starting HTTP server")
		err := server.Serve(lis)
		if errors.Is(err, http.ErrServerClosed) {
			log.Info().Msg("Server closed")
			return
		}
		firstErr <- err
	}()

	select {
	case err := <-firstErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Initiating shutdown process")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	<-firstErr
	log.Info().Msg("Shutdown completed")
	return err
}

// ServeGRPC runs server on bind until ctx is done, then stops it gracefully
func ServeGRPC(ctx context.Context, bind string, server *grpc.Server) error {
	lis, err := net.Listen("tcp", bind)
	if err != nil {
		return errors.Wrapf(err, "listen %s", bind)
	}
	log := logutil.GetOrDefault(ctx).With().Str("server.addr", lis.Addr().String()).Logger()

	firstErr := make(chan error, 1)
	go func() {
		defer close(firstErr)
		log.Info().Msg("Starting gRPC server")
		if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			firstErr <- err
		}
	}()

	select {
	case err := <-firstErr:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("Stopping gRPC server")
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(ShutdownTimeout):
		server.Stop()
	}
	<-firstErr
	return nil
}
