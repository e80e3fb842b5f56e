package generator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"script_video_assistant/knowledge"
)

// DefaultTransformDelay spaces provider calls during a batch transform.
const DefaultTransformDelay = 2 * time.Second

// Transformer regenerates every stored script through one more LLM pass.
type Transformer struct {
	agent   *Agent
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewTransformer throttles calls to one per delay; delay <= 0 disables throttling.
func NewTransformer(agent *Agent, delay time.Duration, logger *zap.Logger) (*Transformer, error) {
	if agent == nil {
		return nil, errors.New("agent is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Transformer{agent: agent, limiter: rate.NewLimiter(limit, 1), logger: logger}, nil
}

// Transform writes an improved copy of src to dstPath and returns it. Items
// whose call or extraction fails keep their original script. src is never
// modified or saved.
func (t *Transformer) Transform(ctx context.Context, src *knowledge.Store, dstPath string) (*knowledge.Store, error) {
	dst := knowledge.New(dstPath)

	var waitErr error
	src.Each(func(prompt, script string) bool {
		if err := t.limiter.Wait(ctx); err != nil {
			waitErr = err
			return false
		}
		improved, err := t.agent.Improve(ctx, prompt)
		if err != nil {
			t.logger.Error("improvement failed, keeping original", zap.String("prompt", prompt), zap.Error(err))
			dst.Set(prompt, script)
			return true
		}
		t.logger.Debug("improved", zap.String("prompt", prompt))
		dst.Set(prompt, improved.Body)
		return true
	})
	if waitErr != nil {
		return nil, waitErr
	}

	if err := dst.Save(); err != nil {
		return nil, err
	}
	return dst, nil
}
