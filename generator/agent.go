package generator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultCallTimeout bounds a single LLM call.
const DefaultCallTimeout = 120 * time.Second

// AgentOptions tunes how an Agent talks to the model.
type AgentOptions struct {
	ScriptLanguage  string
	CommentLanguage string
	CallTimeout     time.Duration
	Logger          *zap.Logger
}

// Agent composes instructions, calls the LLM and extracts the script.
type Agent struct {
	llm     LLMClient
	opts    AgentOptions
	logger  *zap.Logger
	timeout time.Duration
}

func NewAgent(llm LLMClient, opts AgentOptions) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Agent{llm: llm, opts: opts, logger: logger, timeout: timeout}, nil
}

// Generate runs one interactive attempt. Invocation failures come back as
// *InvocationError, responses without a code block as ErrNoCodeBlock.
func (a *Agent) Generate(ctx context.Context, in ComposeInput, history []Message) (Script, error) {
	in.ScriptLanguage = a.opts.ScriptLanguage
	in.CommentLanguage = a.opts.CommentLanguage
	return a.complete(ctx, BuildPrompt(in, history))
}

// Improve asks the model to regenerate the script for a stored prompt.
func (a *Agent) Improve(ctx context.Context, basePrompt string) (Script, error) {
	return a.complete(ctx, BuildImprovementPrompt(basePrompt, ComposeInput{
		ScriptLanguage:  a.opts.ScriptLanguage,
		CommentLanguage: a.opts.CommentLanguage,
	}))
}

func (a *Agent) complete(ctx context.Context, prompt Prompt) (Script, error) {
	a.logger.Debug("sending prompt",
		zap.String("system", prompt.System),
		zap.String("user", prompt.User),
		zap.Int("history", len(prompt.History)),
	)

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	raw, err := a.llm.Complete(callCtx, prompt)
	if err != nil {
		return Script{}, &InvocationError{Err: err}
	}
	a.logger.Debug("model response", zap.String("raw", raw))
	return Extract(raw)
}
