// Package textutil holds the plain-text helpers shared by export, search and
// stats: entry content is stored as a small HTML fragment and most consumers
// want text or markdown out of it.
package textutil

import (
	"regexp"
	"strings"

	"dumpzone/internal/daybook/model"
)

var (
	tagRe    = regexp.MustCompile(`<[^>]*>`)
	brRe     = regexp.MustCompile(`(?i)<br\s*/?>`)
	divOpen  = regexp.MustCompile(`(?i)<div[^>]*>`)
	divClose = regexp.MustCompile(`(?i)</div>`)
	pOpen    = regexp.MustCompile(`(?i)<p[^>]*>`)
	pClose   = regexp.MustCompile(`(?i)</p>`)
	boldRe   = regexp.MustCompile(`(?i)<(b|strong)[^>]*>(.*?)</(b|strong)>`)
	italicRe = regexp.MustCompile(`(?i)<(i|em)[^>]*>(.*?)</(i|em)>`)
	multiNL  = regexp.MustCompile(`\n{3,}`)
)

// StripHTML reduces an HTML fragment to plain text, keeping line structure:
// <br> and block boundaries become newlines, every other tag is dropped.
func StripHTML(html string) string {
	s := brRe.ReplaceAllString(html, "\n")
	s = divClose.ReplaceAllString(s, "\n")
	s = pClose.ReplaceAllString(s, "\n\n")
	s = tagRe.ReplaceAllString(s, "")
	s = decodeEntities(s)
	s = multiNL.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// ToMarkdown converts the stored HTML fragment to markdown. Only the tags
// the editor can actually produce are handled.
func ToMarkdown(html string) string {
	s := boldRe.ReplaceAllString(html, "**$2**")
	s = italicRe.ReplaceAllString(s, "*$2*")
	s = brRe.ReplaceAllString(s, "\n")
	s = divOpen.ReplaceAllString(s, "")
	s = divClose.ReplaceAllString(s, "\n")
	s = pOpen.ReplaceAllString(s, "")
	s = pClose.ReplaceAllString(s, "\n\n")
	s = tagRe.ReplaceAllString(s, "")
	s = decodeEntities(s)
	s = multiNL.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func decodeEntities(s string) string {
	r := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
	return r.Replace(s)
}

// WordCount counts whitespace-separated words in the rendered text.
func WordCount(html string) int {
	return len(strings.Fields(StripHTML(html)))
}

// CharCount counts runes in the rendered text, whitespace included.
func CharCount(html string) int {
	return len([]rune(StripHTML(html)))
}

// Matches reports whether an entry matches a free-text query. The match is
// case-insensitive over rendered content, date and tags; an empty query
// matches everything.
func Matches(entry model.Entry, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(StripHTML(entry.Content)), q) {
		return true
	}
	if strings.Contains(strings.ToLower(entry.Date), q) {
		return true
	}
	for _, tag := range entry.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// RenderMarkdown renders one archived entry as a standalone markdown
// document with the date as heading.
func RenderMarkdown(entry model.Entry) string {
	var b strings.Builder
	b.WriteString("# " + entry.Date + "\n\n")
	b.WriteString(ToMarkdown(entry.Content))
	if len(entry.Tags) > 0 {
		b.WriteString("\n\nTags: " + strings.Join(entry.Tags, ", "))
	}
	b.WriteString("\n")
	return b.String()
}

// RenderAllMarkdown renders a list of entries as one markdown document,
// separated by horizontal rules.
func RenderAllMarkdown(entries []model.Entry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, strings.TrimRight(RenderMarkdown(e), "\n"))
	}
	return strings.Join(parts, "\n\n---\n\n") + "\n"
}

// RenderAllText renders a list of entries as one plain-text document.
func RenderAllText(entries []model.Entry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, strings.TrimRight(RenderText(e), "\n"))
	}
	return strings.Join(parts, "\n\n========\n\n") + "\n"
}

// RenderText renders one archived entry as plain text.
func RenderText(entry model.Entry) string {
	var b strings.Builder
	b.WriteString(entry.Date + "\n\n")
	b.WriteString(StripHTML(entry.Content))
	if len(entry.Tags) > 0 {
		b.WriteString("\n\nTags: " + strings.Join(entry.Tags, ", "))
	}
	b.WriteString("\n")
	return b.String()
}
