package config

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrUsage is returned by ParseSettings when the command line is incomplete.
var ErrUsage = errors.New("a stage and a service definition are required")

// Settings are the runtime options of the offline load balancer, gathered
// from the command line and the environment.
type Settings struct {
	Stage          string
	ConfigFile     string
	Port           int
	LambdaEndpoint string
	Region         string
	LogLevel       string
}

// Usage returns the usage line for the given program name.
func Usage(program string) string {
	return fmt.Sprintf("Usage: %s --stage <stage> <serverless.yml>", program)
}

// ParseSettings parses args (without the program name) and the process
// environment.
//
//	ALB_PORT                    listen port, default 3000
//	SERVERLESS_LAMBDA_ENDPOINT  lambda endpoint, default http://localhost:<lambdaPort>
//	ALB_REGION                  region used to sign invocations, default us-east-1
//	ALB_LOG_LEVEL               zap log level, default debug
func ParseSettings(program string, args []string) (Settings, error) {
	fs := pflag.NewFlagSet(program, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.String("stage", "", "deployment stage used to namespace function names")

	if err := fs.Parse(args); err != nil {
		return Settings{}, errors.Wrap(ErrUsage, err.Error())
	}

	v := viper.New()
	if err := v.BindPFlag("stage", fs.Lookup("stage")); err != nil {
		return Settings{}, errors.Wrap(err, "failed binding stage flag")
	}

	v.SetDefault("port", 3000)
	v.SetDefault("region", "us-east-1")
	v.SetDefault("log_level", "debug")

	for key, env := range map[string]string{
		"port":            "ALB_PORT",
		"lambda_endpoint": "SERVERLESS_LAMBDA_ENDPOINT",
		"region":          "ALB_REGION",
		"log_level":       "ALB_LOG_LEVEL",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return Settings{}, errors.Wrapf(err, "failed binding %s", env)
		}
	}

	settings := Settings{
		Stage:          v.GetString("stage"),
		ConfigFile:     fs.Arg(0),
		Port:           v.GetInt("port"),
		LambdaEndpoint: v.GetString("lambda_endpoint"),
		Region:         v.GetString("region"),
		LogLevel:       v.GetString("log_level"),
	}

	if settings.Stage == "" || settings.ConfigFile == "" {
		return settings, ErrUsage
	}

	if settings.Port < 1 || settings.Port > 65535 {
		return settings, errors.Errorf("invalid ALB_PORT %q", v.GetString("port"))
	}

	return settings, nil
}

// Endpoint returns the lambda endpoint to invoke functions on. An explicit
// endpoint wins over the port declared in the service definition.
func (s Settings) Endpoint(def *Definition) string {
	if s.LambdaEndpoint != "" {
		return s.LambdaEndpoint
	}

	return fmt.Sprintf("http://localhost:%d", def.LambdaPort())
}
