package client

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kyokomi/emoji/v2"
)

// TriggerKind identifies which completion popup an input position calls for
type TriggerKind int

const (
	TriggerNone TriggerKind = iota
	TriggerMention
	TriggerEmoji
)

// Trigger describes an active completion trigger in the input line
type Trigger struct {
	Kind TriggerKind
	// Start is the byte offset of the trigger rune ('@' or ':').
	Start int
	// Query is the text between the trigger rune and the cursor.
	Query string
}

// DetectTrigger inspects the text before the cursor and reports whether a
// completion popup should be open. A trigger rune only counts at the start
// of the line or after whitespace; "user@host" or "12:30" never open a
// popup.
func DetectTrigger(text string, cursor int) Trigger {
	if cursor > len(text) {
		cursor = len(text)
	}
	before := text[:cursor]

	for i := len(before) - 1; i >= 0; i-- {
		c := before[i]
		if c == '@' || c == ':' {
			if i > 0 && !unicode.IsSpace(rune(before[i-1])) {
				return Trigger{Kind: TriggerNone}
			}
			query := before[i+1:]
			// Whitespace inside the query means the trigger was abandoned.
			if strings.ContainsFunc(query, unicode.IsSpace) {
				return Trigger{Kind: TriggerNone}
			}
			kind := TriggerMention
			if c == ':' {
				kind = TriggerEmoji
			}
			return Trigger{Kind: kind, Start: i, Query: query}
		}
		if unicode.IsSpace(rune(c)) {
			return Trigger{Kind: TriggerNone}
		}
	}
	return Trigger{Kind: TriggerNone}
}

// FilterCandidates returns the candidates containing the query,
// case-insensitively, in lexicographic order. Prefix matches sort ahead of
// interior matches.
func FilterCandidates(candidates []string, query string) []string {
	q := strings.ToLower(query)
	var prefix, inner []string
	for _, c := range candidates {
		lc := strings.ToLower(c)
		switch {
		case strings.HasPrefix(lc, q):
			prefix = append(prefix, c)
		case strings.Contains(lc, q):
			inner = append(inner, c)
		}
	}
	sort.Strings(prefix)
	sort.Strings(inner)
	return append(prefix, inner...)
}

// EmojiCodes returns all known emoji shortcodes without colons, sorted
func EmojiCodes() []string {
	codeMap := emoji.CodeMap()
	codes := make([]string, 0, len(codeMap))
	for code := range codeMap {
		codes = append(codes, strings.Trim(code, ":"))
	}
	sort.Strings(codes)
	return codes
}

// CompleteEmoji replaces a just-closed :shortcode: ending at cursor with its
// emoji, returning the new text and cursor. ok is false when the code is
// unknown, leaving the text for the user to fix.
func CompleteEmoji(text string, cursor int) (string, int, bool) {
	if cursor > len(text) || cursor == 0 || text[cursor-1] != ':' {
		return text, cursor, false
	}
	before := text[:cursor-1]
	open := strings.LastIndexByte(before, ':')
	if open < 0 {
		return text, cursor, false
	}
	code := text[open:cursor]
	glyph := emoji.Sprint(code)
	if strings.TrimSpace(glyph) == strings.TrimSpace(code) {
		return text, cursor, false
	}
	glyph = strings.TrimRight(glyph, " ")
	out := text[:open] + glyph + text[cursor:]
	return out, open + len(glyph), true
}

// ReplaceShortcodes expands every known :shortcode: in a message body.
// Unknown codes pass through untouched.
func ReplaceShortcodes(body string) string {
	return strings.TrimRight(emoji.Sprint(body), " ")
}

// InsertCompletion replaces the active trigger's query with the chosen
// completion and returns the new text and cursor position. Mentions keep
// the '@'; emoji completions replace the whole trigger with the glyph.
func InsertCompletion(text string, trig Trigger, choice string) (string, int) {
	tail := ""
	end := trig.Start + 1 + len(trig.Query)
	if end < len(text) {
		tail = text[end:]
	}
	var inserted string
	switch trig.Kind {
	case TriggerMention:
		inserted = "@" + choice + " "
	case TriggerEmoji:
		inserted = strings.TrimRight(emoji.Sprint(":"+choice+":"), " ")
	default:
		return text, len(text)
	}
	out := text[:trig.Start] + inserted + tail
	return out, trig.Start + len(inserted)
}

// Command is a parsed slash command
type Command struct {
	Name string
	Args []string
}

// ParseCommand parses a leading-slash input line. Non-command input and the
// bare "/" return nil; unrecognized commands are still returned so the
// caller can decide whether to send them as plain text.
func ParseCommand(input string) *Command {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "/") || len(trimmed) < 2 {
		return nil
	}
	fields := strings.Fields(trimmed[1:])
	if len(fields) == 0 {
		return nil
	}
	return &Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}
}
