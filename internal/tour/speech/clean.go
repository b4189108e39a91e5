// Package speech prepares narration text for the TTS provider: stripping
// markup the voice would read aloud and splitting long text into
// provider-safe chunks.
package speech

import (
	"regexp"
	"strings"
)

var (
	headerRe     = regexp.MustCompile(`(?m)^#{1,6}\s*(.+)$`)
	boldItalicRe = regexp.MustCompile(`(\*\*|__|\*|_)`)
	citationRe   = regexp.MustCompile(`\[\d+\]`)
	hrRe         = regexp.MustCompile(`(?m)^\s*(-{3,}|\*{3,}|_{3,})\s*$`)
	bulletRe     = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedRe   = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+`)
	urlRe        = regexp.MustCompile(`https?://\S+`)
	newlinesRe   = regexp.MustCompile(`\n{3,}`)
)

// CleanForSpeech strips markdown and citation markup out of narration so
// the synthesized voice reads only prose. Headers become sentences with a
// trailing period so the voice still pauses; list content is kept with
// its markers removed.
func CleanForSpeech(text string) string {
	out := headerRe.ReplaceAllStringFunc(text, func(line string) string {
		title := strings.TrimSpace(strings.TrimLeft(line, "# "))
		if title == "" {
			return ""
		}
		if strings.HasSuffix(title, ".") || strings.HasSuffix(title, "!") || strings.HasSuffix(title, "?") {
			return title
		}
		return title + "."
	})
	out = hrRe.ReplaceAllString(out, "")
	out = bulletRe.ReplaceAllString(out, "")
	out = numberedRe.ReplaceAllString(out, "")
	out = citationRe.ReplaceAllString(out, "")
	out = urlRe.ReplaceAllString(out, "")
	out = boldItalicRe.ReplaceAllString(out, "")
	out = newlinesRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
