package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/prognoshealth/offline-alb/config"
	"github.com/prognoshealth/offline-alb/proxy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

type testShutdowner struct {
	called bool
}

func (ts *testShutdowner) Shutdown(...fx.ShutdownOption) error {
	ts.called = true
	return nil
}

type echoInvoker struct{}

func (echoInvoker) Invoke(ctx context.Context, target string, event events.ALBTargetGroupRequest) (events.ALBTargetGroupResponse, error) {
	return events.ALBTargetGroupResponse{
		StatusCode: 200,
		Headers:    map[string]string{"X-Target": target},
		Body:       event.Path,
	}, nil
}

func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	return l.Addr().(*net.TCPAddr).Port
}

func testDispatcher(t *testing.T) *proxy.Dispatcher {
	route, err := proxy.NewRoute("^/hello", "svc-dev-hello")
	require.NoError(t, err)

	return proxy.NewDispatcher(&proxy.Router{Routes: []*proxy.Route{route}}, echoInvoker{}, zap.NewNop())
}

func TestNewRouter(t *testing.T) {
	router := NewRouter(testDispatcher(t))

	cases := []struct {
		method       string
		target       string
		expectedCode int
		expectedBody string
	}{
		{"GET", "/hello", 200, "/hello"},
		{"DELETE", "/hello//world/../x", 200, "/hello//world/../x"},
		{"GET", "/nope", 404, `No path expression matches "/nope"`},
	}

	for _, c := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(c.method, c.target, nil))

		assert.Equal(t, c.expectedCode, rec.Code, c.target)
		assert.Equal(t, c.expectedBody, rec.Body.String(), c.target)
	}
}

func TestNew(t *testing.T) {
	port := freePort(t)
	lc := fxtest.NewLifecycle(t)
	shutdowner := &testShutdowner{}

	srv := New(In{
		Lifecycle:  lc,
		Shutdowner: shutdowner,
		Settings:   config.Settings{Port: port},
		Dispatcher: testDispatcher(t),
		Logger:     zap.NewNop(),
	})

	require.NotNil(t, srv)
	lc.RequireStart()

	response, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/hello/there", port))
	require.NoError(t, err)
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)

	assert.Equal(t, 200, response.StatusCode)
	assert.Equal(t, "/hello/there", string(body))
	assert.Equal(t, "svc-dev-hello", response.Header.Get("X-Target"))

	lc.RequireStop()
	assert.False(t, shutdowner.called)
}

func TestNew_listenError(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer l.Close()

	lc := fxtest.NewLifecycle(t)
	New(In{
		Lifecycle:  lc,
		Shutdowner: &testShutdowner{},
		Settings:   config.Settings{Port: l.Addr().(*net.TCPAddr).Port},
		Dispatcher: testDispatcher(t),
		Logger:     zap.NewNop(),
	})

	err = lc.Start(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed listening on")
}

func TestServe_unexpectedExit(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	l.Close()

	shutdowner := &testShutdowner{}
	Serve(&http.Server{}, l, zap.NewNop(), shutdowner)

	assert.True(t, shutdowner.called)
}
