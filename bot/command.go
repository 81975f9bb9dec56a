// Package bot is the request boundary: it turns chat updates into analysis
// requests, sends the resulting artifacts back and decides which failures
// are worth telling the user about.
package bot

import "strings"

// Commands accepted on replies, without their prefix.
var Commands = map[string]bool{
	"analyze": true,
	"ml":      true,
	"formant": true,
	"pitch":   true,
	"stats":   true,
}

// ParseCommand extracts a command token from message text such as
// "!ml" or "/pitch@voicebot please". ok is false when the text is not a
// command for this bot.
func ParseCommand(text string) (cmd string, ok bool) {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return "", false
	}
	tok := fields[0]
	if tok[0] != '!' && tok[0] != '/' {
		return "", false
	}
	tok = tok[1:]
	if i := strings.IndexByte(tok, '@'); i >= 0 {
		tok = tok[:i]
	}
	if !Commands[tok] {
		return "", false
	}
	return tok, true
}
