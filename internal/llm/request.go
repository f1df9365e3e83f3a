package llm

import (
	"strings"

	"twin/internal/session"
	"twin/internal/tokenutil"
)

// WindowConfig bounds how much history is sent with each request.
type WindowConfig struct {
	// Turns is the number of most recent turns kept.
	Turns int
	// TokenLimit drops the oldest windowed turns until the history fits.
	// Zero disables the cap.
	TokenLimit int
}

// BuildRequest assembles the provider request: persona as the system
// directive, the most recent turns oldest first, then message as the final
// user entry. Empty turns are skipped, adjacent turns with the same role are
// merged and the history always starts with a user turn, which is the shape
// every supported provider accepts.
func BuildRequest(persona string, history []session.Turn, message string, window WindowConfig, params Params, count tokenutil.Counter) Request {
	turns := window.Turns
	if turns <= 0 {
		turns = DefaultHistoryTurns
	}
	if len(history) > turns {
		history = history[len(history)-turns:]
	}

	kept := make([]Message, 0, len(history)+1)
	for _, turn := range history {
		if strings.TrimSpace(turn.Content) == "" || !turn.Role.Valid() {
			continue
		}
		kept = append(kept, Message{Role: string(turn.Role), Content: turn.Content})
	}

	if window.TokenLimit > 0 && count != nil {
		kept = capTokens(kept, window.TokenLimit, count)
	}

	for len(kept) > 0 && kept[0].Role != RoleUser {
		kept = kept[1:]
	}

	kept = append(kept, Message{Role: RoleUser, Content: message})
	return Request{
		System:   persona,
		Messages: mergeAdjacent(kept),
		Params:   params,
	}
}

func capTokens(messages []Message, limit int, count tokenutil.Counter) []Message {
	total := 0
	sizes := make([]int, len(messages))
	for i, msg := range messages {
		sizes[i] = count(msg.Content)
		total += sizes[i]
	}
	start := 0
	for total > limit && start < len(messages) {
		total -= sizes[start]
		start++
	}
	return messages[start:]
}

func mergeAdjacent(messages []Message) []Message {
	merged := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if n := len(merged); n > 0 && merged[n-1].Role == msg.Role {
			merged[n-1].Content += "\n\n" + msg.Content
			continue
		}
		merged = append(merged, msg)
	}
	return merged
}
