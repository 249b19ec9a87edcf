package command

import (
	"regexp"
	"strings"
)

// patternRe is non-greedy so "[[[A]]][[[B]]]" yields two patterns.
var patternRe = regexp.MustCompile(`\[\[\[(.*?)\]\]\]`)

// Extract returns the trimmed contents of every [[[...]]] pattern in text,
// left to right. Text starting with ReservedPrefix yields nothing.
func Extract(text string) []string {
	if strings.HasPrefix(text, ReservedPrefix) {
		return nil
	}
	matches := patternRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	raw := make([]string, 0, len(matches))
	for _, m := range matches {
		raw = append(raw, strings.TrimSpace(m[1]))
	}
	return raw
}
