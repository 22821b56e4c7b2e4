package handlers

import "strings"

// htmlEscaper replaces the characters that are significant in HTML
// attributes and text, including the slash, backslash and backtick.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	`"`, "&quot;",
	"'", "&#x27;",
	"<", "&lt;",
	">", "&gt;",
	"/", "&#x2F;",
	`\`, "&#x5C;",
	"`", "&#96;",
)

func escape(s string) string {
	return htmlEscaper.Replace(s)
}
