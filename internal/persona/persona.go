// Package persona supplies the system-level instruction block that
// establishes the assistant's identity.
package persona

import (
	"context"
	"errors"
	"strings"
)

// Provider returns the persona instructions for one request.
type Provider interface {
	Instructions(ctx context.Context) (string, error)
}

// StaticProvider returns fixed text.
type StaticProvider struct {
	text string
}

// NewStaticProvider rejects blank text.
func NewStaticProvider(text string) (*StaticProvider, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("persona text is empty")
	}
	return &StaticProvider{text: text}, nil
}

func (p *StaticProvider) Instructions(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.text, nil
}
