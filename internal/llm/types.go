package llm

import (
	"context"
	"errors"
)

// Message roles understood by every provider.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	DefaultMaxTokens    = 2000
	DefaultTemperature  = 0.3
	DefaultTopP         = 0.9
	DefaultHistoryTurns = 20
)

// Params are the fixed decoding parameters sent with every request.
type Params struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// DefaultParams favours persona fidelity over variety.
func DefaultParams() Params {
	return Params{
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
	}
}

// Message is one role-tagged entry sent to a provider.
type Message struct {
	Role    string
	Content string
}

// Request is the provider-neutral completion request.
type Request struct {
	System   string
	Messages []Message
	Params   Params
}

// Result is a completed reply. TokensUsed is zero when the provider does not
// report usage.
type Result struct {
	Text       string
	TokensUsed int
	StopReason string
}

// Provider invokes one remote model.
type Provider interface {
	Name() string
	Converse(ctx context.Context, req Request) (Result, error)
}

// ErrEmptyReply is returned when a provider answers without any text.
var ErrEmptyReply = errors.New("completion returned no text")
