package message

import (
	"regexp"
	"strings"

	"smartmsg/internal/common"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Escape markers for literal braces. Template authors write {{ and }} to
// emit a single brace.
const (
	openMarker  = "\x00{"
	closeMarker = "\x00}"
)

// Format substitutes every {placeholder} marker in text with its value from
// ctx. A placeholder with no value fails with MissingContextKeyError rather
// than being left verbatim — a half-substituted message reaching a user is
// worse than a loud failure. Pure function: no I/O, no shared state, the
// inputs are never mutated.
func Format(text string, ctx map[string]string) (string, error) {
	if !strings.ContainsAny(text, "{}") {
		return text, nil
	}

	text = strings.ReplaceAll(text, "{{", openMarker)
	text = strings.ReplaceAll(text, "}}", closeMarker)

	var missing string
	out := placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		key := match[1 : len(match)-1]
		value, ok := ctx[key]
		if !ok {
			if missing == "" {
				missing = key
			}
			return match
		}
		return value
	})
	if missing != "" {
		return "", &common.MissingContextKeyError{Key: missing}
	}

	out = strings.ReplaceAll(out, openMarker, "{")
	out = strings.ReplaceAll(out, closeMarker, "}")
	return out, nil
}
