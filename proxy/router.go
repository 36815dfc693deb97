package proxy

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/prognoshealth/offline-alb/config"
)

// Router is the ordered route table of the load balancer.
//
// Route matching is a simple process that loops through all routes in the
// order they were added and checks if a match is present. The first matching
// route wins, there is no best or longest match.
//
// A Router built by NewRouterFromConfig is never modified afterwards, so it
// may be shared by any number of concurrent requests.
//
// Example:
//
//	def, err := config.Load("serverless.yml")
//	if err != nil {
//		return err
//	}
//
//	router, err := proxy.NewRouterFromConfig(def, "dev")
//	if err != nil {
//		return err
//	}
//
//	if route := router.Match("GET", "/hello"); route != nil {
//		fmt.Println(route.Target)
//	}
type Router struct {
	Routes []*Route

	errors []error
}

// TargetName returns the name of the deployed function for the given
// service, stage and function.
func TargetName(service string, stage string, function string) string {
	return fmt.Sprintf("%s-%s-%s", service, stage, function)
}

// NewRouterFromConfig builds the route table for the alb events declared in
// def. Functions are visited in declaration order and so are their events.
// Every alb event with a path condition adds one route.
//
// Any invalid path or method fails the whole table.
func NewRouterFromConfig(def *config.Definition, stage string) (*Router, error) {
	router := &Router{}

	for _, name := range def.FunctionNames() {
		target := TargetName(def.Service.Name, stage, name)

		for i, event := range def.Functions[name].Events {
			if event.ALB == nil || event.ALB.Conditions.Path == "" {
				continue
			}

			methods, err := parseMethods(event.ALB.Conditions.Method)
			if err != nil {
				router.AddBuildError(errors.Wrapf(err, "function '%s' event %d", name, i))
				continue
			}

			route, err := NewRoute(event.ALB.Conditions.Path, target, methods...)
			if err != nil {
				err = errors.Wrapf(err, "function '%s' event %d", name, i)
			}

			router.AddRouteIfNoError(route, err)
		}
	}

	if !router.Valid() {
		return nil, router.BuildErrors()
	}

	return router, nil
}

func parseMethods(names []string) ([]HttpMethod, error) {
	var methods []HttpMethod

	for _, name := range names {
		m, err := ParseHttpMethod(name)
		if err != nil {
			return nil, err
		}

		methods = append(methods, m)
	}

	return methods, nil
}

// Valid returns true if the routers' routes have all been built successfully.
// Otherwise false.
func (router *Router) Valid() bool {
	return len(router.errors) == 0
}

// AddRoute appends route to the list of routes used for request matching.
func (router *Router) AddRoute(route *Route) {
	router.Routes = append(router.Routes, route)
}

// AddBuildError appends an error to the list of router errors.
func (router *Router) AddBuildError(err error) {
	router.errors = append(router.errors, err)
}

// BuildErrors returns a single error that encapsulates all the route errors
// found during router construction.
func (router *Router) BuildErrors() error {
	topError := errors.New("failed building router")

	for _, err := range router.errors {
		topError = errors.Wrap(topError, err.Error())
	}

	return topError
}

// AddRouteIfNoError appends the provided route if no error is present.
// Otherwise it adds the error to the build errors.
func (router *Router) AddRouteIfNoError(route *Route, err error) {
	if err != nil {
		router.AddBuildError(err)
	} else {
		router.AddRoute(route)
	}
}

// Match returns the first route matching method and path, or nil when no
// route matches.
func (router *Router) Match(method string, path string) *Route {
	for _, route := range router.Routes {
		if route.IsMatch(method, path) {
			return route
		}
	}

	return nil
}
