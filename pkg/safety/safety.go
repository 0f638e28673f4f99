// Package safety screens generated output before it reaches the caller.
//
// The prompt directive already instructs the model to refuse unsafe
// requests, but a directive can be circumvented; this filter is the
// defense-in-depth pass over what actually came back. Any implementation
// satisfying Classifier can replace the keyword matcher without touching
// the pipeline.
package safety

import "strings"

// Refusal is the fixed reply substituted for unsafe output. It is what the
// caller sees and what is persisted into history, so the record stays
// consistent with what the user was shown.
const Refusal = "I'm here to provide safe and helpful information, so I can't assist with that request."

// DefaultKeywords is the default category word list. It is data, not logic:
// extend or replace it at construction time.
var DefaultKeywords = []string{
	"kill", "suicide", "bomb", "terror",
	"porn", "rape", "nude", "sex",
	"hate", "racist", "violence",
}

// Classifier reports whether generated text is unsafe to return.
type Classifier interface {
	Unsafe(text string) bool
}

// Filter is a coarse keyword matcher over generated output.
type Filter struct {
	keywords []string
}

// NewFilter creates a filter over the given keyword list, or
// DefaultKeywords when none are provided.
func NewFilter(keywords ...string) *Filter {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}

	lowered := make([]string, len(keywords))
	for i, w := range keywords {
		lowered[i] = strings.ToLower(w)
	}

	return &Filter{keywords: lowered}
}

// Unsafe reports whether text matches any flagged keyword.
func (f *Filter) Unsafe(text string) bool {
	t := strings.ToLower(text)
	for _, w := range f.keywords {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}

var _ Classifier = (*Filter)(nil)
