package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectTrigger(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		cursor int
		kind   TriggerKind
		query  string
	}{
		{"mention at start", "@al", 3, TriggerMention, "al"},
		{"mention after space", "hey @bo", 7, TriggerMention, "bo"},
		{"bare at", "@", 1, TriggerMention, ""},
		{"emoji at start", ":smi", 4, TriggerEmoji, "smi"},
		{"emoji after space", "nice :tad", 9, TriggerEmoji, "tad"},
		{"email does not trigger", "user@host", 9, TriggerNone, ""},
		{"clock does not trigger", "meet at 12:30", 13, TriggerNone, ""},
		{"abandoned by space", "@al ice", 7, TriggerNone, ""},
		{"plain text", "hello", 5, TriggerNone, ""},
		{"cursor before trigger", "@al", 0, TriggerNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trig := DetectTrigger(tt.text, tt.cursor)
			assert.Equal(t, tt.kind, trig.Kind)
			if tt.kind != TriggerNone {
				assert.Equal(t, tt.query, trig.Query)
			}
		})
	}
}

func TestFilterCandidates(t *testing.T) {
	users := []string{"zoe", "albert", "alice", "malcolm"}

	// Prefix matches come first, lexicographically; interior matches follow.
	got := FilterCandidates(users, "al")
	assert.Equal(t, []string{"albert", "alice", "malcolm"}, got)

	got = FilterCandidates(users, "z")
	assert.Equal(t, []string{"zoe"}, got)

	assert.Empty(t, FilterCandidates(users, "xyz"))

	// Empty query keeps everyone, sorted.
	got = FilterCandidates(users, "")
	assert.Equal(t, []string{"albert", "alice", "malcolm", "zoe"}, got)
}

func TestCompleteEmoji(t *testing.T) {
	text, cursor, ok := CompleteEmoji("hello :beer:", 12)
	require.True(t, ok)
	assert.Equal(t, "hello 🍺", text)
	assert.Equal(t, len(text), cursor)

	// Unknown code stays put for the user to fix.
	_, _, ok = CompleteEmoji("hello :notanemoji:", 18)
	assert.False(t, ok)

	// No opening colon.
	_, _, ok = CompleteEmoji("hello:", 6)
	assert.False(t, ok)
}

func TestReplaceShortcodes(t *testing.T) {
	assert.Equal(t, "cheers 🍺", ReplaceShortcodes("cheers :beer:"))
	// Unknown codes pass through.
	assert.Equal(t, "so :wat:", ReplaceShortcodes("so :wat:"))
}

func TestInsertCompletion(t *testing.T) {
	trig := DetectTrigger("hey @al", 7)
	require.Equal(t, TriggerMention, trig.Kind)

	text, cursor := InsertCompletion("hey @al", trig, "alice")
	assert.Equal(t, "hey @alice ", text)
	assert.Equal(t, len("hey @alice "), cursor)
}

func TestParseCommand(t *testing.T) {
	cmd := ParseCommand("/download 4f2a")
	require.NotNil(t, cmd)
	assert.Equal(t, "download", cmd.Name)
	assert.Equal(t, []string{"4f2a"}, cmd.Args)

	cmd = ParseCommand("  /UPLOAD  ")
	require.NotNil(t, cmd)
	assert.Equal(t, "upload", cmd.Name)
	assert.Empty(t, cmd.Args)

	assert.Nil(t, ParseCommand("plain message"))
	assert.Nil(t, ParseCommand("/"))
	assert.Nil(t, ParseCommand(""))
}

func TestEmojiCodesSorted(t *testing.T) {
	codes := EmojiCodes()
	require.NotEmpty(t, codes)
	assert.True(t, sortedStrings(codes))
	assert.Contains(t, codes, "beer")
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] < s[i-1] {
			return false
		}
	}
	return true
}
