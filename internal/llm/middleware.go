package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type CompleteFunc func(ctx context.Context, req Request) (Response, error)

type Middleware interface {
	WrapComplete(next CompleteFunc) CompleteFunc
}

// MiddlewareFunc adapts a plain function to Middleware. A nil Complete is a pass-through.
type MiddlewareFunc struct {
	Complete func(ctx context.Context, req Request, next CompleteFunc) (Response, error)
}

func (m MiddlewareFunc) WrapComplete(next CompleteFunc) CompleteFunc {
	if m.Complete == nil {
		return next
	}
	return func(ctx context.Context, req Request) (Response, error) {
		return m.Complete(ctx, req, next)
	}
}

func applyMiddlewareComplete(base CompleteFunc, mws []Middleware) CompleteFunc {
	h := base
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		h = mws[i].WrapComplete(h)
	}
	return h
}

// LoggingMiddleware records one structured log line per completion call.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return MiddlewareFunc{
		Complete: func(ctx context.Context, req Request, next CompleteFunc) (Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			fields := []zap.Field{
				zap.String("provider", req.Provider),
				zap.String("model", req.Model),
				zap.Int("messages", len(req.Messages)),
				zap.Duration("latency", time.Since(start)),
			}
			if err != nil {
				logger.Warn("llm completion failed", append(fields, zap.Error(err))...)
				return resp, err
			}
			logger.Debug("llm completion",
				append(fields,
					zap.String("finish_reason", resp.Finish.Reason),
					zap.Int("input_tokens", resp.Usage.InputTokens),
					zap.Int("output_tokens", resp.Usage.OutputTokens),
				)...)
			return resp, nil
		},
	}
}
