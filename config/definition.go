package config

import (
	"os"
	"reflect"
	"sort"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// DefaultLambdaPort is the port serverless-offline serves its lambda
// invocation endpoint on when the service definition does not override it.
const DefaultLambdaPort = 3002

// Definition is the subset of a serverless service definition that the
// offline load balancer needs.
type Definition struct {
	Service   ServiceName         `mapstructure:"service"`
	Functions map[string]Function `mapstructure:"functions"`
	Offline   Offline             `mapstructure:"serverless-offline"`
	Custom    Custom              `mapstructure:"custom"`

	// functionOrder holds the function names in the order they are declared
	functionOrder []string
}

// ServiceName accepts either `service: name` or `service: {name: name}`.
type ServiceName struct {
	Name string `mapstructure:"name"`
}

// Function is a single function declaration. Only its events matter here.
type Function struct {
	Handler string  `mapstructure:"handler"`
	Events  []Event `mapstructure:"events"`
}

// Event is one entry of a function's event list. Events of any kind other
// than alb decode with a nil ALB field.
type Event struct {
	ALB *ALBEvent `mapstructure:"alb"`
}

// ALBEvent is an alb trigger declaration.
type ALBEvent struct {
	Conditions Conditions `mapstructure:"conditions"`
}

// Conditions are the alb listener rule conditions. Path is a regular
// expression source; Method is an optional list of http methods.
type Conditions struct {
	Path   string   `mapstructure:"path"`
	Method []string `mapstructure:"method"`
}

// Offline holds serverless-offline settings.
type Offline struct {
	LambdaPort int `mapstructure:"lambdaPort"`
}

// Custom is the `custom` section of the definition.
type Custom struct {
	Offline Offline `mapstructure:"serverless-offline"`
}

// Load reads and parses the service definition stored at path.
func Load(path string) (*Definition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading service definition '%s'", path)
	}

	def, err := Parse(content)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid service definition '%s'", path)
	}

	return def, nil
}

// Parse decodes a yaml service definition and validates it.
func Parse(content []byte) (*Definition, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, errors.Wrap(err, "failed parsing yaml")
	}

	if len(root.Content) == 0 {
		return nil, errors.New("service definition is empty")
	}

	var tree map[string]interface{}
	if err := root.Decode(&tree); err != nil {
		return nil, errors.Wrap(err, "service definition must be a mapping")
	}

	def := &Definition{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			serviceNameHook,
			stringToSliceHook,
		),
		Result: def,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed building decoder")
	}

	if err := decoder.Decode(tree); err != nil {
		return nil, errors.Wrap(err, "failed decoding service definition")
	}

	def.functionOrder = mappingKeys(root.Content[0], "functions")

	if err := def.Validate(); err != nil {
		return nil, err
	}

	return def, nil
}

// Validate reports every problem with the definition at once.
func (def *Definition) Validate() error {
	var err error

	if def.Service.Name == "" {
		err = multierr.Append(err, errors.New("service name is required"))
	}

	if def.Functions == nil {
		err = multierr.Append(err, errors.New("functions mapping is required"))
	}

	if port := def.LambdaPort(); port < 1 || port > 65535 {
		err = multierr.Append(err, errors.Errorf("lambdaPort %d is out of range", port))
	}

	return err
}

// LambdaPort returns the local lambda port. A top level serverless-offline
// section takes precedence over custom.serverless-offline.
func (def *Definition) LambdaPort() int {
	if def.Offline.LambdaPort != 0 {
		return def.Offline.LambdaPort
	}

	if def.Custom.Offline.LambdaPort != 0 {
		return def.Custom.Offline.LambdaPort
	}

	return DefaultLambdaPort
}

// FunctionNames returns the declared function names in declaration order.
func (def *Definition) FunctionNames() []string {
	names := make([]string, 0, len(def.Functions))
	seen := make(map[string]bool, len(def.Functions))

	for _, name := range def.functionOrder {
		if _, ok := def.Functions[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}

	// definitions built in code have no recorded order
	var rest []string
	for name := range def.Functions {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)

	return append(names, rest...)
}

// mappingKeys returns the keys of the mapping found under key in the given
// document mapping node, in document order.
func mappingKeys(doc *yaml.Node, key string) []string {
	if doc.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != key {
			continue
		}

		value := doc.Content[i+1]
		if value.Kind != yaml.MappingNode {
			return nil
		}

		keys := make([]string, 0, len(value.Content)/2)
		for j := 0; j+1 < len(value.Content); j += 2 {
			keys = append(keys, value.Content[j].Value)
		}

		return keys
	}

	return nil
}

func serviceNameHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(ServiceName{}) || from.Kind() != reflect.String {
		return data, nil
	}

	return map[string]interface{}{"name": data}, nil
}

func stringToSliceHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf([]string{}) || from.Kind() != reflect.String {
		return data, nil
	}

	return []string{data.(string)}, nil
}
