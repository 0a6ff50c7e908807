package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mathew-h/experiment-tracking-sub000/pkg/context"
)

const (
	// HeaderOperator identifies who is making the change
	HeaderOperator = "X-Operator"
	// HeaderUploadSource names the pipeline that produced the payload
	HeaderUploadSource = "X-Upload-Source"
)

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			ctx = context.SetOperator(ctx, req.Header.Get(HeaderOperator))
			ctx = context.SetUploadSource(ctx, req.Header.Get(HeaderUploadSource))

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
