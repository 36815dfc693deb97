package lambdautils

import (
	"encoding/json"
	"fmt"
)

// FunctionError is returned when the invoked function itself failed. Payload
// holds the raw error document returned by the lambda endpoint.
type FunctionError struct {
	Target  string `json:"-"`
	Type    string `json:"errorType"`
	Message string `json:"errorMessage"`
	Payload []byte `json:"-"`
}

// NewFunctionError builds a FunctionError from a lambda error payload of the
// form {"errorType": "...", "errorMessage": "..."}. Payloads that are not
// json are kept as the message.
func NewFunctionError(target string, payload []byte) *FunctionError {
	fe := &FunctionError{Target: target, Payload: payload}

	if err := json.Unmarshal(payload, fe); err != nil {
		fe.Type = "Unknown"
		fe.Message = string(payload)
	}

	return fe
}

func (fe *FunctionError) Error() string {
	return fmt.Sprintf("Error from \"%s\": %s: %s", fe.Target, fe.Type, fe.Message)
}
