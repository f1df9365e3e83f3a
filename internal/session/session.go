package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "twin/internal/errors"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one immutable entry of a session transcript.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists complete transcripts keyed by session id. Load returns an
// empty slice for an unseen id. Save replaces the stored transcript.
type Store interface {
	Load(ctx context.Context, id string) ([]Turn, error)
	Save(ctx context.Context, id string, turns []Turn) error
}

// ErrMalformed is returned when a stored transcript cannot be parsed.
var ErrMalformed = errors.New("malformed session document")

// NewID returns a fresh version-4 session id.
func NewID() string {
	return uuid.NewString()
}

// ParseID validates a caller supplied id. Only the canonical 36 character
// form of a version-4, RFC 4122 variant UUID is accepted. The returned id is
// lower-cased so it addresses a single stored blob.
func ParseID(raw string) (string, error) {
	const canonicalLen = 36
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) != canonicalLen {
		return "", apperrors.NewClientInput("session_id", "Invalid session ID format", nil)
	}
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return "", apperrors.NewClientInput("session_id", "Invalid session ID format", err)
	}
	if parsed.Version() != 4 || parsed.Variant() != uuid.RFC4122 {
		return "", apperrors.NewClientInput("session_id", "Invalid session ID format", nil)
	}
	return parsed.String(), nil
}

// Encode serialises turns as the stored document.
func Encode(turns []Turn) ([]byte, error) {
	if turns == nil {
		turns = []Turn{}
	}
	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	return data, nil
}

// storedTurn accepts timestamps with or without a zone offset, since older
// transcripts were written as naive local ISO-8601 strings.
type storedTurn struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// timestampLayouts are tried in order. Layouts without an offset are read as
// wall-clock time in time.Local, the zone the older transcripts were written in.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Decode parses a stored document. Any parse failure wraps ErrMalformed.
func Decode(data []byte) ([]Turn, error) {
	var stored []storedTurn
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	turns := make([]Turn, 0, len(stored))
	for i, st := range stored {
		if !st.Role.Valid() {
			return nil, fmt.Errorf("%w: turn %d has role %q", ErrMalformed, i, st.Role)
		}
		ts, err := parseTimestamp(st.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: turn %d: %v", ErrMalformed, i, err)
		}
		turns = append(turns, Turn{Role: st.Role, Content: st.Content, Timestamp: ts})
	}
	return turns, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}
