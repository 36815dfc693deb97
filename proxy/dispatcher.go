package proxy

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
	"github.com/prognoshealth/offline-alb/lambdautils"
	"go.uber.org/zap"
)

// NoMatchError is reported for a path that matches no route.
type NoMatchError string

func (e NoMatchError) Error() string {
	return fmt.Sprintf("No path expression matches \"%s\"", string(e))
}

// Dispatcher is the http.Handler that forwards every request to the function
// of the first matching route and translates the function's response.
//
// Each request gets a single invocation attempt. Invocation failures and
// function errors become 500 responses carrying the error message. Nothing is
// written once the client has gone away.
type Dispatcher struct {
	Router  *Router
	Invoker lambdautils.Invoker
	Logger  *zap.Logger
}

// NewDispatcher returns a Dispatcher over the given router and invoker.
func NewDispatcher(router *Router, invoker lambdautils.Invoker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		Router:  router,
		Invoker: invoker,
		Logger:  logger,
	}
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// the whole body is read up front so binary and multipart bodies reach
	// the function intact
	body, err := io.ReadAll(r.Body)
	if err != nil {
		d.fail(w, r, errors.Wrap(err, "failed reading request body"))
		return
	}

	path := r.URL.EscapedPath()
	route := d.Router.Match(r.Method, path)
	if route == nil {
		writeText(w, http.StatusNotFound, NoMatchError(path).Error())
		return
	}

	rctx := &RouteContext{
		Context: r.Context(),
		Request: r,
		Route:   route,
		Body:    body,
	}

	response, err := d.Invoker.Invoke(rctx.Context, route.Target, rctx.Event())
	if err != nil {
		var fe *lambdautils.FunctionError
		if errors.As(err, &fe) && r.Context().Err() == nil {
			d.Logger.Error("function error",
				zap.String("target", fe.Target),
				zap.ByteString("payload", fe.Payload),
			)
		}

		d.fail(w, r, err)
		return
	}

	if err := d.write(w, response); err != nil {
		d.fail(w, r, err)
	}
}

// write copies the function response onto w. The first value of each multi
// value header is applied before the single value headers, so a header
// present in both takes its single value.
func (d *Dispatcher) write(w http.ResponseWriter, response events.ALBTargetGroupResponse) error {
	body := []byte(response.Body)
	if response.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(response.Body)
		if err != nil {
			return errors.Wrap(err, "failed decoding base64 response body")
		}
		body = decoded
	}

	header := w.Header()
	for name, values := range response.MultiValueHeaders {
		if len(values) > 0 {
			header.Set(name, values[0])
		}
	}

	for name, value := range response.Headers {
		header.Set(name, value)
	}

	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		// too late for an error response
		d.Logger.Debug("failed writing response body", zap.Error(err))
	}

	return nil
}

// fail logs err and answers with a 500, unless the request was cancelled by
// the client.
func (d *Dispatcher) fail(w http.ResponseWriter, r *http.Request, err error) {
	if r.Context().Err() != nil {
		d.Logger.Debug("client went away, response suppressed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		return
	}

	d.Logger.Error("dispatch failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)

	writeText(w, http.StatusInternalServerError, err.Error())
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, text)
}
