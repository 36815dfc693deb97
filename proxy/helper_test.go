package proxy

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/prognoshealth/offline-alb/config"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// mockInvoker is a mock type for the lambdautils.Invoker type
type mockInvoker struct {
	mock.Mock
}

func (m *mockInvoker) Invoke(ctx context.Context, target string, event events.ALBTargetGroupRequest) (events.ALBTargetGroupResponse, error) {
	ret := m.Called(ctx, target, event)
	return ret.Get(0).(events.ALBTargetGroupResponse), ret.Error(1)
}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return zap.New(core), logs
}

func testDefinition(t *testing.T, content string) *config.Definition {
	def, err := config.Parse([]byte(content))
	require.NoError(t, err)
	return def
}

func testRouter(t *testing.T, content string, stage string) *Router {
	router, err := NewRouterFromConfig(testDefinition(t, content), stage)
	require.NoError(t, err)
	return router
}

const helloDefinition = `
service: svc
functions:
  hello:
    events:
      - alb:
          conditions:
            path: ^/hello$
`

const overlappingDefinition = `
service:
  name: svc
functions:
  users:
    events:
      - alb:
          conditions:
            path: ^/users/admin
            method: [POST]
      - alb:
          conditions:
            path: /users
  catchall:
    events:
      - alb:
          conditions:
            path: .*
`
