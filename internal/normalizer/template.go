package normalizer

import (
	"strings"

	"drama-server/internal/genre"
)

// EnsureTemplate forces raw into the profile's section template. Text that
// already carries every required label passes through unchanged, so the
// operation is idempotent. Otherwise a minimal conformant document is built:
// the summary is the raw text's first line (or the profile default), the body
// is the span between the story and result labels (or the whole text, or the
// profile default when empty) and the remaining sections get their default
// fills.
func EnsureTemplate(p genre.Profile, raw string) string {
	normalized := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))

	conformant := true
	for _, label := range p.Labels() {
		if !strings.Contains(normalized, label) {
			conformant = false
			break
		}
	}
	if conformant {
		return normalized
	}

	summary := extractSummary(p, normalized)
	if summary == "" {
		summary = p.DefaultSummary
	}
	body := extractBody(p, normalized)
	if body == "" {
		body = p.DefaultBody
	}

	var b strings.Builder
	b.WriteString(p.SummaryLabel)
	b.WriteString(summary)
	b.WriteString("\n\n")
	b.WriteString(p.StoryLabel)
	b.WriteString(body)
	if p.ResultLabel != "" {
		b.WriteString("\n\n")
		b.WriteString(p.ResultLabel)
		b.WriteString(p.DefaultResult)
	}
	if p.HintLabel != "" {
		b.WriteString("\n")
		b.WriteString(p.HintLabel)
		b.WriteString(p.DefaultHint)
	}
	return b.String()
}

func extractSummary(p genre.Profile, text string) string {
	if idx := strings.Index(text, p.SummaryLabel); idx >= 0 {
		rest := text[idx+len(p.SummaryLabel):]
		line, _, _ := strings.Cut(rest, "\n")
		return strings.TrimSpace(line)
	}
	line, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(line)
}

func extractBody(p genre.Profile, text string) string {
	if idx := strings.Index(text, p.StoryLabel); idx >= 0 {
		rest := text[idx+len(p.StoryLabel):]
		if p.ResultLabel != "" {
			before, _, _ := strings.Cut(rest, p.ResultLabel)
			return strings.TrimSpace(before)
		}
		return strings.TrimSpace(rest)
	}
	return text
}
