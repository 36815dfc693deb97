package lambdautils

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/pkg/errors"
)

// ClientContextSource is the value of the "source" custom client context key
// on every invocation made by the offline load balancer.
const ClientContextSource = "offline-alb"

// ALBClientContext returns the client context attached to the invocation of
// target so handlers can tell they were called through the load balancer.
func ALBClientContext(target string) lambdacontext.ClientContext {
	return lambdacontext.ClientContext{
		Client: lambdacontext.ClientApplication{
			AppTitle:       ClientContextSource,
			AppPackageName: "github.com/prognoshealth/offline-alb",
		},
		Custom: map[string]string{
			"source": ClientContextSource,
			"target": target,
		},
	}
}

// EncodeClientContext returns cc in the base64 json form the lambda Invoke
// api expects.
func EncodeClientContext(cc lambdacontext.ClientContext) (string, error) {
	b, err := json.Marshal(cc)
	if err != nil {
		return "", errors.Wrap(err, "failed encoding client context")
	}

	return base64.StdEncoding.EncodeToString(b), nil
}

// FromALB reports whether the lambda context carried by ctx was produced by
// the offline load balancer. It is meant for use inside function handlers.
func FromALB(ctx context.Context) bool {
	lc, ok := lambdacontext.FromContext(ctx)
	if !ok {
		return false
	}

	return lc.ClientContext.Custom["source"] == ClientContextSource
}
