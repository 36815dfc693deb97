package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/prognoshealth/offline-alb/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

const serviceDefinition = `
service: svc
functions:
  hello:
    handler: hello.handler
    events:
      - alb:
          conditions:
            path: ^/hello$
  broken:
    handler: broken.handler
    events:
      - alb:
          conditions:
            path: ^/broken
`

// fakeLambda answers lambda Invoke api calls the way serverless-offline does.
type fakeLambda struct {
	mu      sync.Mutex
	invoked []string
	events  []events.ALBTargetGroupRequest
}

func (f *fakeLambda) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// /2015-03-31/functions/{name}/invocations
	parts := strings.Split(r.URL.Path, "/")
	name := parts[len(parts)-2]

	var event events.ALBTargetGroupRequest
	json.NewDecoder(r.Body).Decode(&event)

	f.mu.Lock()
	f.invoked = append(f.invoked, name)
	f.events = append(f.events, event)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if name == "svc-dev-broken" {
		w.Header().Set("X-Amz-Function-Error", "Unhandled")
		io.WriteString(w, `{"errorType":"Error","errorMessage":"kaboom"}`)
		return
	}

	io.WriteString(w, `{"statusCode":200,"headers":{"Content-Type":"text/plain"},"body":"ok"}`)
}

func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	return l.Addr().(*net.TCPAddr).Port
}

func writeDefinition(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "serverless.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func get(t *testing.T, url string) (int, string) {
	response, err := http.Get(url)
	require.NoError(t, err)
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)

	return response.StatusCode, string(body)
}

func TestApplication(t *testing.T) {
	lambda := &fakeLambda{}
	endpoint := httptest.NewServer(lambda)
	defer endpoint.Close()

	port := freePort(t)
	settings := config.Settings{
		Stage:          "dev",
		ConfigFile:     writeDefinition(t, serviceDefinition),
		Port:           port,
		LambdaEndpoint: endpoint.URL,
		Region:         "us-east-1",
		LogLevel:       "error",
	}

	app := fxtest.New(t, options(settings))
	app.RequireStart()
	defer app.RequireStop()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	status, body := get(t, base+"/hello?name=world")
	assert.Equal(t, 200, status)
	assert.Equal(t, "ok", body)

	status, body = get(t, base+"/unknown")
	assert.Equal(t, 404, status)
	assert.Contains(t, body, "/unknown")

	status, body = get(t, base+"/broken")
	assert.Equal(t, 500, status)
	assert.Equal(t, `Error from "svc-dev-broken": Error: kaboom`, body)

	lambda.mu.Lock()
	defer lambda.mu.Unlock()

	assert.Equal(t, []string{"svc-dev-hello", "svc-dev-broken"}, lambda.invoked)
	event := lambda.events[0]
	assert.Equal(t, "GET", event.HTTPMethod)
	assert.Equal(t, "/hello", event.Path)
	assert.Equal(t, "world", event.QueryStringParameters["name"])
	assert.NotEmpty(t, event.Headers["x-amzn-trace-id"])
	assert.Equal(t, "arn:aws:elasticloadbalancing:offline:000000000000:targetgroup/svc-dev-hello/offline", event.RequestContext.ELB.TargetGroupArn)
}

func TestApplication_startupErrors(t *testing.T) {
	cases := []struct {
		name     string
		settings config.Settings
		contains string
	}{
		{
			"missing file",
			config.Settings{Stage: "dev", ConfigFile: "/does/not/exist.yml", LogLevel: "error"},
			"failed reading service definition",
		},
		{
			"bad regex",
			config.Settings{Stage: "dev", ConfigFile: writeDefinition(t, "service: s\nfunctions:\n  f:\n    events:\n      - alb:\n          conditions:\n            path: \"(\"\n"), LogLevel: "error"},
			"failed compiling regex pattern",
		},
		{
			"bad log level",
			config.Settings{Stage: "dev", ConfigFile: writeDefinition(t, serviceDefinition), LogLevel: "loud"},
			"invalid log level",
		},
	}

	for _, c := range cases {
		app := fx.New(options(c.settings), fx.NopLogger)

		err := app.Err()
		if assert.Error(t, err, c.name) {
			assert.Contains(t, err.Error(), c.contains, c.name)
		}
	}
}
