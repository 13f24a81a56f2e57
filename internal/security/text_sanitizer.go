package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService flattens untrusted text to plain text before it is
// rendered. Stolen-report descriptions, sighting locations and backend
// detail messages are all authored outside the console.
type TextSanitizerService interface {
	// Sanitize strips every HTML tag and attribute from the input and
	// returns the remaining text. Idempotent; empty input yields empty
	// output.
	Sanitize(raw string) string
}

// textSanitizer implements TextSanitizerService with a bluemonday strict
// policy. The policy is safe for concurrent use.
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer creates a TextSanitizerService.
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize strips all markup and resolves the entities bluemonday escapes,
// leaving plain text for html/template to escape on output.
func (s *textSanitizer) Sanitize(raw string) string {
	return html.UnescapeString(s.policy.Sanitize(raw))
}

// compile-time interface check
var _ TextSanitizerService = (*textSanitizer)(nil)
