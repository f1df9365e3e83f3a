package llm

import (
	"context"
	"fmt"
	"sync"

	"twin/internal/tokenutil"
)

const mockProviderName = "mock"

// MockProvider answers without a network call. It is selected with
// llm.provider=mock for local runs and used by tests.
type MockProvider struct {
	mu       sync.Mutex
	reply    string
	tokens   int
	err      error
	requests []Request
}

// NewMockProvider returns a provider that always answers reply. A
// non-positive tokens value reports an estimate of the request size.
func NewMockProvider(reply string, tokens int) *MockProvider {
	return &MockProvider{reply: reply, tokens: tokens}
}

// FailWith makes every later call return err.
func (p *MockProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Requests returns the requests received so far.
func (p *MockProvider) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Request(nil), p.requests...)
}

func (p *MockProvider) Name() string {
	return mockProviderName
}

func (p *MockProvider) Converse(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return Result{}, p.err
	}

	reply := p.reply
	if reply == "" && len(req.Messages) > 0 {
		reply = fmt.Sprintf("You said: %s", req.Messages[len(req.Messages)-1].Content)
	}
	tokens := p.tokens
	if tokens <= 0 {
		tokens = tokenutil.EstimateFast(req.System)
		for _, msg := range req.Messages {
			tokens += tokenutil.EstimateFast(msg.Content)
		}
		tokens += tokenutil.EstimateFast(reply)
	}
	return Result{Text: reply, TokensUsed: tokens, StopReason: "end_turn"}, nil
}
