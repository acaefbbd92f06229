package mask

import "strings"

// Masked is the literal placeholder used for hidden contact fields.
const Masked = "*"

// Name hides the last token of a full name: "สมชาย ใจดี" -> "สมชาย *".
// Single-token names are hidden entirely.
func Name(full string) string {
	words := strings.Fields(full)
	if len(words) <= 1 {
		return Masked
	}
	words[len(words)-1] = Masked
	return strings.Join(words, " ")
}
