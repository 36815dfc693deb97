// Package proxy turns the alb path conditions of a serverless service
// definition into a route table and dispatches incoming http requests to the
// matching function as events.ALBTargetGroupRequest, writing the returned
// events.ALBTargetGroupResponse back to the client.
//
// The router is designed to be as simplistic as possible and is not feature
// rich: routes are scanned in declaration order and the first match wins.
package proxy
