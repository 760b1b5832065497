package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed is returned when content holds no JSON value of the
// requested shape.
var ErrParseFailed = errors.New("failed to parse response")

const maxEcho = 200

var fencePattern = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")

// Parse unmarshals a model reply into T. The reply may be bare JSON, JSON in
// a markdown code fence, or a JSON object embedded in prose; the candidates
// are tried in that order.
func Parse[T any](content string) (T, error) {
	var result T
	content = strings.TrimSpace(content)

	for _, candidate := range candidates(content) {
		var v T
		if err := json.Unmarshal([]byte(candidate), &v); err == nil {
			return v, nil
		}
	}

	return result, fmt.Errorf("%w: %s", ErrParseFailed, echo(content))
}

func candidates(content string) []string {
	out := []string{content}
	if m := fencePattern.FindStringSubmatch(content); len(m) >= 2 {
		out = append(out, strings.TrimSpace(m[1]))
	}
	open := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if open >= 0 && end > open {
		out = append(out, content[open:end+1])
	}
	return out
}

func echo(s string) string {
	r := []rune(s)
	if len(r) <= maxEcho {
		return s
	}
	return string(r[:maxEcho]) + "..."
}
