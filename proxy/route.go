package proxy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Route binds a path Regex, and optionally a set of methods, to the target
// function that handles matching requests.
//
// The Regex is searched for anywhere in the path, it is not anchored. Path
// conditions that need a full match must carry their own ^ and $.
type Route struct {
	Methods []HttpMethod
	Regex   *regexp.Regexp
	Target  string
}

// NewRoute returns a Route for the specified pattern, target and methods. A
// route without methods matches any method.
func NewRoute(pattern string, target string, methods ...HttpMethod) (*Route, error) {
	rx, err := regexp.Compile(pattern)

	if err != nil {
		return nil, errors.Wrapf(err, "failed compiling regex pattern '%s'", pattern)
	}

	route := &Route{
		Methods: methods,
		Regex:   rx,
		Target:  target,
	}

	return route, nil
}

// String returns a string representation of this route.
func (route *Route) String() string {
	method := "*"
	if len(route.Methods) > 0 {
		names := make([]string, len(route.Methods))
		for i, m := range route.Methods {
			names[i] = m.String()
		}
		method = strings.Join(names, ",")
	}

	return fmt.Sprintf("%s %s -> %s", method, route.Regex, route.Target)
}

// IsMatch returns true if the method is allowed by the route and the route's
// regex matches somewhere in path.
func (route *Route) IsMatch(method string, path string) bool {
	if !route.allows(method) {
		return false
	}

	return route.Regex.MatchString(path)
}

func (route *Route) allows(method string) bool {
	if len(route.Methods) == 0 {
		return true
	}

	for _, m := range route.Methods {
		if m.String() == method {
			return true
		}
	}

	return false
}
