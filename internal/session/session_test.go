package session

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "twin/internal/errors"
	"twin/internal/observability"
)

var uuidV4Pattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestNewIDIsVersion4(t *testing.T) {
	for i := 0; i < 20; i++ {
		id := NewID()
		assert.Regexp(t, uuidV4Pattern, id)
		parsed, err := ParseID(id)
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "canonical", raw: "3f2c1b7e-8a4d-4c6b-9e21-5d7a0f3b2c11", want: "3f2c1b7e-8a4d-4c6b-9e21-5d7a0f3b2c11"},
		{name: "upper case is normalised", raw: "3F2C1B7E-8A4D-4C6B-9E21-5D7A0F3B2C11", want: "3f2c1b7e-8a4d-4c6b-9e21-5d7a0f3b2c11"},
		{name: "surrounding space", raw: " 3f2c1b7e-8a4d-4c6b-9e21-5d7a0f3b2c11 ", want: "3f2c1b7e-8a4d-4c6b-9e21-5d7a0f3b2c11"},
		{name: "version 1", raw: "3f2c1b7e-8a4d-1c6b-9e21-5d7a0f3b2c11", wantErr: true},
		{name: "wrong variant", raw: "3f2c1b7e-8a4d-4c6b-1e21-5d7a0f3b2c11", wantErr: true},
		{name: "urn form", raw: "urn:uuid:3f2c1b7e-8a4d-4c6b-9e21-5d7a0f3b2c11", wantErr: true},
		{name: "no hyphens", raw: "3f2c1b7e8a4d4c6b9e215d7a0f3b2c11", wantErr: true},
		{name: "path traversal", raw: "../../../../etc/passwd-aaaaaaaaaaaaaa", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseID(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsClientInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 123000000, time.UTC)
	turns := []Turn{
		{Role: RoleUser, Content: "Tell me about your background.", Timestamp: ts},
		{Role: RoleAssistant, Content: "Sure.\nI build things.", Timestamp: ts.Add(2 * time.Second)},
	}
	data, err := Encode(turns)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, got, len(turns))
	for i := range turns {
		assert.Equal(t, turns[i].Role, got[i].Role)
		assert.Equal(t, turns[i].Content, got[i].Content)
		assert.True(t, turns[i].Timestamp.Equal(got[i].Timestamp))
	}
}

func TestEncodeNilIsEmptyArray(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(data)))
}

func TestDecodeAcceptsNaiveTimestamps(t *testing.T) {
	doc := `[{"role":"user","content":"hi","timestamp":"2024-05-01T12:30:00.123456"},
	         {"role":"assistant","content":"hello","timestamp":"2024-05-01T12:30:02"}]`
	got, err := Decode([]byte(doc))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2024, got[0].Timestamp.Year())
	assert.Equal(t, 123456000, got[0].Timestamp.Nanosecond())

	want := time.Date(2024, 5, 1, 12, 30, 2, 0, time.Local)
	assert.True(t, want.Equal(got[1].Timestamp), "got %s", got[1].Timestamp)
	assert.Equal(t, time.Local, got[1].Timestamp.Location())
}

func TestDecodeKeepsExplicitOffsets(t *testing.T) {
	got, err := Decode([]byte(`[{"role":"user","content":"hi","timestamp":"2024-05-01T12:30:00+02:00"}]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC).Equal(got[0].Timestamp))
}

func TestDecodeRejectsMalformedDocuments(t *testing.T) {
	for name, doc := range map[string]string{
		"not json":      "{",
		"object":        `{"role":"user"}`,
		"unknown role":  `[{"role":"system","content":"x"}]`,
		"bad timestamp": `[{"role":"user","content":"x","timestamp":"yesterday"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

type stubStore struct {
	turns []Turn
	err   error
	saved []Turn
}

func (s *stubStore) Load(context.Context, string) ([]Turn, error) { return s.turns, s.err }
func (s *stubStore) Save(_ context.Context, _ string, turns []Turn) error {
	s.saved = turns
	return s.err
}

func TestInstrumentDelegates(t *testing.T) {
	inner := &stubStore{turns: []Turn{{Role: RoleUser, Content: "x"}}}
	store := Instrument(inner, "memory", nil, observability.NoopTracer())

	got, err := store.Load(context.Background(), "id")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, store.Save(context.Background(), "id", got))
	assert.Equal(t, got, inner.saved)

	inner.err = errors.New("boom")
	_, err = store.Load(context.Background(), "id")
	assert.EqualError(t, err, "boom")
}
