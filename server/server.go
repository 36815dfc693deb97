// Package server exposes the dispatcher over http and binds the listener to
// the fx application lifecycle.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prognoshealth/offline-alb/config"
	"github.com/prognoshealth/offline-alb/proxy"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewRouter returns a mux.Router sending every method and path to handler.
// Paths are not cleaned, the route table sees them as the client sent them.
func NewRouter(handler http.Handler) *mux.Router {
	router := mux.NewRouter()
	router.SkipClean(true)
	router.PathPrefix("/").Handler(handler)
	router.NotFoundHandler = handler

	return router
}

// In is the set of dependencies required to build the server.
type In struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Settings   config.Settings
	Dispatcher *proxy.Dispatcher
	Logger     *zap.Logger
}

// New builds the load balancer's http.Server. The server starts listening
// when the application starts and is shut down gracefully when it stops.
func New(in In) *http.Server {
	server := &http.Server{
		Addr:     fmt.Sprintf(":%d", in.Settings.Port),
		Handler:  Chain(in.Logger).Then(NewRouter(in.Dispatcher)),
		ErrorLog: zap.NewStdLog(in.Logger),
	}

	in.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			listener, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return errors.Wrapf(err, "failed listening on %s", server.Addr)
			}

			in.Logger.Info(fmt.Sprintf("ALB listening on %d", in.Settings.Port))
			go Serve(server, listener, in.Logger, in.Shutdowner)
			return nil
		},
		OnStop: server.Shutdown,
	})

	return server
}

// Serve runs the accept loop of server on listener. If the loop exits for any
// reason other than a shutdown, the application is stopped.
func Serve(server *http.Server, listener net.Listener, logger *zap.Logger, shutdowner fx.Shutdowner) {
	err := server.Serve(listener)
	if err == http.ErrServerClosed {
		return
	}

	logger.Error("server exited", zap.Error(err))
	shutdowner.Shutdown()
}
