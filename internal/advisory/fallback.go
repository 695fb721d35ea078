package advisory

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type resilient struct {
	next    Generator
	logger  *zap.Logger
	timeout time.Duration
}

// WithFallback wraps a generator so that it never fails: errors, timeouts and
// panics are logged and replaced with Fallback().
func WithFallback(next Generator, logger *zap.Logger, timeout time.Duration) Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &resilient{next: next, logger: logger, timeout: timeout}
}

func (r *resilient) Generate(ctx context.Context, c Context) (res Result, err error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("advisory generator panicked", zap.Any("panic", p), zap.String("crop", c.Crop))
			res, err = Fallback(), nil
		}
	}()
	res, err = r.next.Generate(ctx, c)
	if err != nil {
		r.logger.Warn("advisory generation failed, serving fallback",
			zap.Error(err),
			zap.String("region", c.Region),
			zap.String("crop", c.Crop),
			zap.String("stage", string(c.Stage)),
		)
		return Fallback(), nil
	}
	return res, nil
}
