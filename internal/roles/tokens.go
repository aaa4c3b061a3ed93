package roles

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// CountTokens counts tokens with the cl100k_base encoding. When the
// encoding cannot be loaded it returns EstimateTokens.
func CountTokens(text string) int {
	encodingOnce.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			encoding = enc
		}
	})
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	return EstimateTokens(text)
}

// EstimateTokens is a heuristic count: max(runes/4, words), at least 1 for
// non-blank text.
func EstimateTokens(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	estimate := len([]rune(trimmed)) / 4
	if words := len(strings.Fields(trimmed)); estimate < words {
		estimate = words
	}
	return max(estimate, 1)
}
