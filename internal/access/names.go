package access

import (
	"strconv"
	"strings"

	"github.com/forPelevin/gomoji"
	"github.com/rivo/uniseg"
)

const maxNameGraphemes = 64

// SanitizeName strips emoji, collapses whitespace, and truncates the result
// to a bounded number of grapheme clusters before it is persisted.
func SanitizeName(raw string) string {
	name := gomoji.RemoveEmojis(raw)
	name = strings.Join(strings.Fields(name), " ")
	name = truncateGraphemes(name, maxNameGraphemes)
	if name == "" {
		return "Unknown User"
	}
	return name
}

func truncateGraphemes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	graphemes := uniseg.NewGraphemes(s)
	count := 0
	for graphemes.Next() {
		count++
		if count == max {
			_, to := graphemes.Positions()
			return s[:to]
		}
	}
	return s
}

func placeholderName(id int64) string {
	return "User " + strconv.FormatInt(id, 10)
}
