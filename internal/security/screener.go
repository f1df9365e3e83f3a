package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "twin/internal/errors"
	"twin/internal/logging"
)

// MaxMessageLength is the longest message, in characters, the screener admits.
const MaxMessageLength = 2000

const (
	EmptyMessage = "Message cannot be empty."
	// DefaultRefusal is returned for every injection match. It never names
	// the pattern family that fired.
	DefaultRefusal = "I can only answer questions about my professional experience and skills."
)

// TooLongMessage is the refusal for messages longer than MaxMessageLength.
var TooLongMessage = fmt.Sprintf("Message too long. Maximum %d characters allowed.", MaxMessageLength)

// Verdict is the outcome of screening one message.
type Verdict struct {
	Allowed bool
	Reason  apperrors.BlockReason
	Message string
}

// Screener decides whether sanitized text may proceed to the model.
//
// Implementations are heuristics. Pattern matching in particular is
// bypassable by paraphrase, translation or encoding and must not be treated
// as a complete defence.
type Screener interface {
	Validate(text string) Verdict
}

type signature struct {
	family  string
	pattern *regexp.Regexp
}

// signatureSource is the catalogue of known manipulation phrasings, grouped
// by family. Patterns are matched against lowercased text.
var signatureSource = []struct {
	family   string
	patterns []string
}{
	{"instruction_override", []string{
		`ignore\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?|context)`,
		`disregard\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?)`,
		`forget\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?)`,
		`override\s+(all\s+)?(previous|prior|system)\s+(instructions?|prompts?|rules?)`,
	}},
	{"prompt_extraction", []string{
		`(show|tell|reveal|display|print|output|repeat)\s+(me\s+)?(your|the)\s+(system\s+)?(prompt|instructions?|rules?|context)`,
		`what\s+(are|is)\s+(your|the)\s+(system\s+)?(prompt|instructions?|rules?)`,
	}},
	{"role_switch", []string{
		`you\s+are\s+now\s+(a|an|the)\b`,
		`pretend\s+(to\s+be|you\s+are)`,
		`act\s+as\s+(if\s+you\s+are|a|an)\b`,
		`roleplay\s+as`,
		`from\s+now\s+on\s+(you\s+are|you're|act\s+as)`,
	}},
	{"mode_switch", []string{
		`(enter|enable|activate|switch\s+to)\s+(developer|debug|admin|sudo|root)\s+mode`,
		`dev\s*mode\s*(on|enabled?|activate)`,
	}},
	{"jailbreak", []string{
		`\bdan\b.*\bjailbreak`,
		`do\s+anything\s+now`,
		`\bdeveloper\s+mode\b`,
	}},
	{"structural_marker", []string{
		`\[system\]`,
		`\[instruction\]`,
		`<\s*system\s*>`,
		`###\s*(instruction|system|prompt)`,
	}},
}

// PatternScreener is the regular-expression Screener.
type PatternScreener struct {
	signatures []signature
	refusal    string
	logger     logging.Logger
}

// ScreenerOption customises a PatternScreener.
type ScreenerOption func(*PatternScreener)

// WithRefusal replaces the generic redirect sentence returned on a match.
func WithRefusal(text string) ScreenerOption {
	return func(s *PatternScreener) {
		if strings.TrimSpace(text) != "" {
			s.refusal = text
		}
	}
}

// WithScreenerLogger sets the logger that records matched patterns.
func WithScreenerLogger(logger logging.Logger) ScreenerOption {
	return func(s *PatternScreener) {
		s.logger = logging.OrNop(logger)
	}
}

// NewPatternScreener compiles the signature catalogue.
func NewPatternScreener(opts ...ScreenerOption) *PatternScreener {
	s := &PatternScreener{
		refusal: DefaultRefusal,
		logger:  logging.NewComponentLogger("Screener"),
	}
	for _, group := range signatureSource {
		for _, p := range group.patterns {
			s.signatures = append(s.signatures, signature{
				family:  group.family,
				pattern: regexp.MustCompile(`(?i)` + p),
			})
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate applies, in order, the empty check, the length check and the
// signature catalogue. The first failing step decides the verdict.
func (s *PatternScreener) Validate(text string) Verdict {
	if strings.TrimSpace(text) == "" {
		return Verdict{Reason: apperrors.ReasonEmptyMessage, Message: EmptyMessage}
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return Verdict{Reason: apperrors.ReasonMessageTooLong, Message: TooLongMessage}
	}

	lowered := strings.ToLower(text)
	for _, sig := range s.signatures {
		if sig.pattern.MatchString(lowered) {
			s.logger.Warn("Potential injection detected: family=%s pattern=%q", sig.family, sig.pattern.String())
			return Verdict{Reason: apperrors.ReasonInjection, Message: s.refusal}
		}
	}
	return Verdict{Allowed: true}
}

// Families lists the signature families in catalogue order.
func Families() []string {
	families := make([]string, 0, len(signatureSource))
	for _, group := range signatureSource {
		families = append(families, group.family)
	}
	return families
}
