package proxy

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
)

// RouteContext contains all the request information for a route when matched.
// Body is the fully buffered request body.
type RouteContext struct {
	Context context.Context
	Request *http.Request
	Route   *Route
	Body    []byte
}

// TargetGroupArn returns the synthetic target group arn reported to target in
// the request context of its events.
func TargetGroupArn(target string) string {
	return fmt.Sprintf("arn:aws:elasticloadbalancing:offline:000000000000:targetgroup/%s/offline", target)
}

// Event builds the alb target group event for the matched request.
//
// Header names are lower cased and repeated headers are joined with ", ". For
// repeated query parameters the last value wins, as alb does when multi value
// headers are disabled on the target group.
//
// The body is passed through untouched with isBase64Encoded false, unless it
// is not valid utf-8, in which case it is base64 encoded so it survives the
// json encoding of the event.
func (ctx *RouteContext) Event() events.ALBTargetGroupRequest {
	body, encoded := encodeBody(ctx.Body)

	return events.ALBTargetGroupRequest{
		HTTPMethod:            ctx.Request.Method,
		Path:                  ctx.Request.URL.EscapedPath(),
		QueryStringParameters: ctx.queryParameters(),
		Headers:               ctx.headers(),
		RequestContext: events.ALBTargetGroupRequestContext{
			ELB: events.ELBContext{
				TargetGroupArn: TargetGroupArn(ctx.Route.Target),
			},
		},
		IsBase64Encoded: encoded,
		Body:            body,
	}
}

func (ctx *RouteContext) queryParameters() map[string]string {
	query := ctx.Request.URL.Query()
	params := make(map[string]string, len(query))

	for key, values := range query {
		if len(values) > 0 {
			params[key] = values[len(values)-1]
		}
	}

	return params
}

func (ctx *RouteContext) headers() map[string]string {
	r := ctx.Request
	headers := make(map[string]string, len(r.Header)+4)

	for name, values := range r.Header {
		headers[strings.ToLower(name)] = strings.Join(values, ", ")
	}

	if r.Host != "" {
		headers["host"] = r.Host
	}

	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if xff, ok := headers["x-forwarded-for"]; ok && xff != "" {
			headers["x-forwarded-for"] = xff + ", " + ip
		} else {
			headers["x-forwarded-for"] = ip
		}
	}

	if _, ok := headers["x-forwarded-proto"]; !ok {
		if r.TLS != nil {
			headers["x-forwarded-proto"] = "https"
		} else {
			headers["x-forwarded-proto"] = "http"
		}
	}

	if _, ok := headers["x-forwarded-port"]; !ok {
		if addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
			if _, port, err := net.SplitHostPort(addr.String()); err == nil {
				headers["x-forwarded-port"] = port
			}
		}
	}

	return headers
}

func encodeBody(body []byte) (string, bool) {
	if utf8.Valid(body) {
		return string(body), false
	}

	return base64.StdEncoding.EncodeToString(body), true
}
