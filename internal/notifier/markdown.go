package notifier

import "strings"

// legacyMarkdown covers the characters that open an entity in Telegram's
// legacy Markdown mode.
var legacyMarkdown = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
)

// EscapeMarkdown escapes text for parse_mode "Markdown".
func EscapeMarkdown(s string) string { return legacyMarkdown.Replace(s) }

// EscaperFor returns the escape function matching parseMode, or nil when
// messages go out as plain text. Only "" and "Markdown" are supported; the
// rendered headers and canned replies are written for legacy Markdown.
func EscaperFor(parseMode string) func(string) string {
	if parseMode == "Markdown" {
		return EscapeMarkdown
	}
	return nil
}
