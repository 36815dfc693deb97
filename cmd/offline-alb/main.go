// Command offline-alb emulates an application load balancer in front of
// serverless-offline:
//
//	offline-alb --stage <stage> <serverless.yml>
//
// Requests are routed by the alb path conditions of the service definition
// and invoked through the local lambda endpoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/prognoshealth/offline-alb/config"
	"github.com/prognoshealth/offline-alb/lambdautils"
	"github.com/prognoshealth/offline-alb/proxy"
	"github.com/prognoshealth/offline-alb/server"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(lc fx.Lifecycle, settings config.Settings) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(settings.LogLevel)); err != nil {
		return nil, errors.Wrapf(err, "invalid log level '%s'", settings.LogLevel)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed building logger")
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// stderr can't always be synced, nothing to do about it
			logger.Sync()
			return nil
		},
	})

	return logger, nil
}

func newDefinition(settings config.Settings) (*config.Definition, error) {
	return config.Load(settings.ConfigFile)
}

func newRouter(def *config.Definition, settings config.Settings, logger *zap.Logger) (*proxy.Router, error) {
	router, err := proxy.NewRouterFromConfig(def, settings.Stage)
	if err != nil {
		return nil, err
	}

	for _, route := range router.Routes {
		logger.Info("route", zap.Stringer("route", route))
	}

	return router, nil
}

func newInvoker(def *config.Definition, settings config.Settings, logger *zap.Logger) (lambdautils.Invoker, error) {
	endpoint := settings.Endpoint(def)
	logger.Info("invoking functions", zap.String("endpoint", endpoint), zap.String("region", settings.Region))

	return lambdautils.NewLambdaInvoker(settings.Region, endpoint)
}

// options assembles the application for the given settings.
func options(settings config.Settings) fx.Option {
	return fx.Options(
		fx.Supply(settings),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))}
		}),
		fx.Provide(
			newLogger,
			newDefinition,
			newRouter,
			newInvoker,
			proxy.NewDispatcher,
			server.New,
		),
		fx.Invoke(func(*http.Server) {}),
	)
}

func main() {
	program := filepath.Base(os.Args[0])

	settings, err := config.ParseSettings(program, os.Args[1:])
	if errors.Is(err, config.ErrUsage) {
		fmt.Fprintln(os.Stderr, config.Usage(program))
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := fx.New(options(settings))
	if err := app.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Run exits the process itself if the server fails to start
	app.Run()
}
