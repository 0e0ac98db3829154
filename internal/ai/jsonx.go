package ai

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	ErrEmptyOutput = errors.New("empty output")
	ErrNotJSON     = errors.New("output does not contain a JSON object")
)

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// ExtractJSON finds a JSON object in model output. It tries a fenced code block,
// then the raw text, then the span from the first '{' to the last '}'.
func ExtractJSON(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyOutput
	}

	var candidates []string
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	candidates = append(candidates, text)
	if i, j := strings.Index(text, "{"), strings.LastIndex(text, "}"); i >= 0 && j > i {
		candidates = append(candidates, text[i:j+1])
	}

	for _, c := range candidates {
		var obj map[string]any
		if err := json.Unmarshal([]byte(c), &obj); err == nil && obj != nil {
			return obj, nil
		}
	}
	return nil, ErrNotJSON
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
