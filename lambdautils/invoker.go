package lambdautils

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"
	"github.com/pkg/errors"
)

// Invoker invokes a function with an alb target group event and returns the
// function's response.
type Invoker interface {
	Invoke(ctx context.Context, target string, event events.ALBTargetGroupRequest) (events.ALBTargetGroupResponse, error)
}

// LambdaInvoker invokes functions through the lambda Invoke api of a local
// lambda endpoint such as serverless-offline.
//
// The endpoint does not check credentials, so static placeholder credentials
// are used to sign requests.
type LambdaInvoker struct {
	Region   string
	Endpoint string

	svcFunc func(client.ConfigProvider) lambdaiface.LambdaAPI
	client  lambdaiface.LambdaAPI
}

// NewLambdaInvoker returns a LambdaInvoker for the given region and endpoint.
func NewLambdaInvoker(region string, endpoint string) (*LambdaInvoker, error) {
	return newLambdaInvoker(region, endpoint, nil)
}

func newLambdaInvoker(region string, endpoint string, svcFunc func(client.ConfigProvider) lambdaiface.LambdaAPI) (*LambdaInvoker, error) {
	invoker := &LambdaInvoker{
		Region:   region,
		Endpoint: endpoint,
		svcFunc:  svcFunc,
	}

	s, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Endpoint:    aws.String(endpoint),
		Credentials: credentials.NewStaticCredentials("offline", "offline", ""),
		// one attempt per request, failures surface as 500s
		MaxRetries: aws.Int(0),
	})

	if err != nil {
		return nil, errors.Wrap(err, "failed getting session")
	}

	invoker.client = invoker.svc(s)
	return invoker, nil
}

// svc is used internally to assist stubs on lambda for testing
func (invoker *LambdaInvoker) svc(p client.ConfigProvider) lambdaiface.LambdaAPI {
	if invoker.svcFunc != nil {
		return invoker.svcFunc(p)
	}

	return lambda.New(p)
}

// invokeInput constructs a synchronous invocation of target with payload.
func (invoker *LambdaInvoker) invokeInput(target string, payload []byte) (*lambda.InvokeInput, error) {
	clientContext, err := EncodeClientContext(ALBClientContext(target))
	if err != nil {
		return nil, err
	}

	return &lambda.InvokeInput{
		FunctionName:   aws.String(target),
		InvocationType: aws.String(lambda.InvocationTypeRequestResponse),
		ClientContext:  aws.String(clientContext),
		Payload:        payload,
	}, nil
}

// Invoke sends event to target and decodes the alb response it returns. A
// function that fails reports a *FunctionError.
func (invoker *LambdaInvoker) Invoke(ctx context.Context, target string, event events.ALBTargetGroupRequest) (events.ALBTargetGroupResponse, error) {
	var response events.ALBTargetGroupResponse

	payload, err := json.Marshal(event)
	if err != nil {
		return response, errors.Wrapf(err, "failed encoding event for '%s'", target)
	}

	input, err := invoker.invokeInput(target, payload)
	if err != nil {
		return response, err
	}

	output, err := invoker.client.InvokeWithContext(ctx, input)
	if err != nil {
		aerr, ok := err.(awserr.Error)
		if ok && aerr.Code() == lambda.ErrCodeResourceNotFoundException {
			return response, errors.Wrapf(err, "function '%s' not found at %s", target, invoker.Endpoint)
		}

		return response, errors.Wrapf(err, "failed invoking '%s'", target)
	}

	if aws.StringValue(output.FunctionError) != "" {
		return response, NewFunctionError(target, output.Payload)
	}

	if len(output.Payload) == 0 {
		return response, nil
	}

	if err := json.Unmarshal(output.Payload, &response); err != nil {
		return response, errors.Wrapf(err, "failed decoding response from '%s'", target)
	}

	return response, nil
}
