package normalize

import (
	"regexp"
	"strings"
)

var (
	// Block-level closers and line breaks become newlines before tags
	// are stripped, so paragraph structure survives.
	breakTags = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</li>|</tr>|</h[1-6]>`)
	anyTag    = regexp.MustCompile(`<[^>]*>`)

	entities = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&aacute;", "á",
		"&eacute;", "é",
		"&iacute;", "í",
		"&oacute;", "ó",
		"&uacute;", "ú",
		"&ntilde;", "ñ",
	)
)

// StripHTML converts an HTML fragment to readable plain text: break
// tags become newlines, remaining tags are dropped, common entities
// are decoded, and blank lines are removed. Idempotent on plain text.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}

	s = breakTags.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, "")
	s = entities.Replace(s)

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// looksLikeHTML is a cheap check for markup that arrived under a
// text/plain content type.
func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range []string{"<html", "<body", "<div", "<p>", "<br", "<table"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
