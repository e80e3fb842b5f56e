package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HistoryExchanges is how many past exchanges are replayed to the model.
const HistoryExchanges = 5

// KnowledgeBase is the store the session retrieves from and records into.
type KnowledgeBase interface {
	Retrieve(query string) string
	Upsert(prompt, script string) error
}

// Handoff persists a script and turns it into a video.
type Handoff interface {
	Persist(script Script) (string, error)
	Render(ctx context.Context, scriptPath string) (string, error)
}

// RetryPolicy caps attempts per prompt and spaces them with exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy allows five attempts, waiting 1s, 2s, 4s, 8s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if d > time.Duration(1<<62) {
			break
		}
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// SessionConfig wires a Session to its collaborators.
type SessionConfig struct {
	Agent     *Agent
	Knowledge KnowledgeBase
	Handoff   Handoff
	Retry     RetryPolicy
	Logger    *zap.Logger
}

// Session holds the conversation state of one interactive run: the current
// base prompt, the error of the last failed attempt, the informal
// "User:"/"AI:" log and the windowed chat history.
type Session struct {
	agent   *Agent
	kb      KnowledgeBase
	handoff Handoff
	retry   RetryPolicy
	logger  *zap.Logger

	basePrompt string
	pendingErr string
	log        []string
	window     *Window
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Agent == nil || cfg.Knowledge == nil || cfg.Handoff == nil {
		return nil, errors.New("session requires agent, knowledge base and handoff")
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		agent:   cfg.Agent,
		kb:      cfg.Knowledge,
		handoff: cfg.Handoff,
		retry:   cfg.Retry,
		logger:  logger,
		window:  NewWindow(HistoryExchanges),
	}, nil
}

// BasePrompt returns the prompt the next attempt will use.
func (s *Session) BasePrompt() string { return s.basePrompt }

// PendingError returns the message that will be folded into the next attempt.
func (s *Session) PendingError() string { return s.pendingErr }

// Log returns the informal "User:"/"AI:" lines collected so far.
func (s *Session) Log() []string { return append([]string(nil), s.log...) }

// History returns the windowed chat turns sent with each attempt.
func (s *Session) History() []Message { return s.window.Messages() }

// Run submits prompt and retries it until it succeeds, a fatal error
// occurs or the retry policy gives up with ErrRetriesExhausted.
func (s *Session) Run(ctx context.Context, prompt string) (Result, error) {
	s.basePrompt = prompt
	s.pendingErr = ""

	var last error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		res, err := s.Step(ctx)
		if err == nil {
			res.Attempts = attempt
			return res, nil
		}
		var ae *AttemptError
		if !errors.As(err, &ae) {
			return Result{}, err
		}
		ae.Attempt = attempt
		last = ae
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		s.logger.Warn("attempt failed", zap.Int("attempt", attempt), zap.Error(ae.Err))
		if attempt == s.retry.MaxAttempts {
			break
		}
		if d := s.retry.delay(attempt); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return Result{}, ctx.Err()
			case <-t.C:
			}
		}
	}
	return Result{}, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, s.retry.MaxAttempts, last)
}

// Step performs one attempt for the current base prompt. A failed LLM call
// or a response without code yields an *AttemptError and leaves its message
// pending for the next attempt. Persistence, render and store failures are
// returned as-is and are not meant to be retried.
func (s *Session) Step(ctx context.Context) (Result, error) {
	in := ComposeInput{
		BasePrompt: s.basePrompt,
		History:    strings.Join(s.log, "\n"),
		Knowledge:  s.kb.Retrieve(s.basePrompt),
		Error:      s.pendingErr,
	}
	s.pendingErr = ""

	script, err := s.agent.Generate(ctx, in, s.window.Messages())
	if err != nil {
		s.pendingErr = err.Error()
		return Result{}, &AttemptError{Err: err}
	}

	scriptPath, err := s.handoff.Persist(script)
	if err != nil {
		return Result{}, err
	}
	s.logger.Info("script saved", zap.String("path", scriptPath))

	videoPath, err := s.handoff.Render(ctx, scriptPath)
	if err != nil {
		return Result{}, err
	}
	s.logger.Info("video rendered", zap.String("path", videoPath))

	s.log = append(s.log, "User: "+s.basePrompt, "AI: "+script.Body)
	s.window.Add(s.basePrompt, script.Body)
	if err := s.kb.Upsert(s.basePrompt, script.Body); err != nil {
		return Result{}, err
	}

	return Result{Script: script, ScriptPath: scriptPath, VideoPath: videoPath}, nil
}
