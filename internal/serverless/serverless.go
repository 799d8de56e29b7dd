// Package serverless runs the proxy's echo instance behind AWS Lambda
// (API Gateway REST proxy events, which is also the Netlify Functions shape).
package serverless

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	echoadapter "github.com/awslabs/aws-lambda-go-api-proxy/echo"
	"github.com/labstack/echo/v4"
)

// Handler is the Lambda function signature for API Gateway proxy events.
type Handler func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// NewHandler adapts e to API Gateway proxy events. e is built once per cold
// start and reused across invocations; it holds no per-request state.
func NewHandler(e *echo.Echo) Handler {
	adapter := echoadapter.New(e)
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	}
}
