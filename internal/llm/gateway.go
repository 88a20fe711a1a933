package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"gosha-bot/internal/logging"
)

var ErrGateBusy = errors.New("provider queue wait timed out")

// ProviderError is returned by Gateway for every failed completion.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

type GatewayOptions struct {
	// MaxInflight bounds concurrent provider calls across all chats.
	MaxInflight int64
	// QueueTimeout bounds how long a call waits for a free slot. Zero waits until ctx is done.
	QueueTimeout time.Duration
	// RequestTimeout bounds a single provider call. Zero disables it.
	RequestTimeout time.Duration
}

// Gateway serializes provider calls behind a bounded gate and normalizes failures.
type Gateway struct {
	client         Client
	sem            *semaphore.Weighted
	queueTimeout   time.Duration
	requestTimeout time.Duration
}

func NewGateway(client Client, opts GatewayOptions) *Gateway {
	if opts.MaxInflight < 1 {
		opts.MaxInflight = 1
	}
	return &Gateway{
		client:         client,
		sem:            semaphore.NewWeighted(opts.MaxInflight),
		queueTimeout:   opts.QueueTimeout,
		requestTimeout: opts.RequestTimeout,
	}
}

func (g *Gateway) Complete(ctx context.Context, messages []Message) (Response, error) {
	l := logging.Ctx(ctx)

	waitCtx := ctx
	if g.queueTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, g.queueTimeout)
		defer cancel()
	}
	queued := time.Now()
	if err := g.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return Response{}, &ProviderError{Op: "queue", Err: ctx.Err()}
		}
		return Response{}, &ProviderError{Op: "queue", Err: ErrGateBusy}
	}
	defer g.sem.Release(1)

	reqCtx := ctx
	if g.requestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, g.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	l.Debug().Int("messages", len(messages)).Dur("queued", start.Sub(queued)).Msg("llm request")
	resp, err := g.client.Generate(reqCtx, messages)
	if err != nil {
		l.Warn().Err(err).Dur("took", time.Since(start)).Msg("llm request failed")
		return Response{}, &ProviderError{Op: "generate", Err: err}
	}
	resp.Content = strings.TrimSpace(resp.Content)
	if resp.Content == "" {
		return Response{}, &ProviderError{Op: "generate", Err: ErrEmptyReply}
	}
	l.Info().
		Str("model", resp.Model).
		Int("prompt_tokens", resp.PromptTokens).
		Int("completion_tokens", resp.CompletionTokens).
		Int("total_tokens", resp.TotalTokens).
		Dur("took", time.Since(start)).
		Msg("llm response")
	return resp, nil
}
