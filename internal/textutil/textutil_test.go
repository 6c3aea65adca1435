package textutil

import (
	"testing"

	"dumpzone/internal/daybook/model"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "plain text", StripHTML("plain text"))
	assert.Equal(t, "line one\nline two", StripHTML("line one<br>line two"))
	assert.Equal(t, "first\nsecond", StripHTML("<div>first</div><div>second</div>"))
	assert.Equal(t, "bold and italic", StripHTML("<b>bold</b> and <em>italic</em>"))
	assert.Equal(t, `a < b & "c"`, StripHTML("a &lt; b &amp; &quot;c&quot;"))
	assert.Equal(t, "", StripHTML("<div><br></div>"))
}

func TestToMarkdown(t *testing.T) {
	assert.Equal(t, "**important**", ToMarkdown("<b>important</b>"))
	assert.Equal(t, "**strong** and *soft*", ToMarkdown("<strong>strong</strong> and <em>soft</em>"))
	assert.Equal(t, "one\ntwo", ToMarkdown("one<br>two"))
}

func TestWordAndCharCounts(t *testing.T) {
	assert.Equal(t, 0, WordCount(""))
	assert.Equal(t, 0, WordCount("<div><br></div>"))
	assert.Equal(t, 3, WordCount("one <b>two</b> three"))

	assert.Equal(t, 0, CharCount(""))
	assert.Equal(t, 5, CharCount("<b>héllo</b>"))
}

func TestMatches(t *testing.T) {
	entry := model.Entry{
		ID:      "e1",
		Date:    "2026-08-31",
		Content: "<div>Met with the <b>Platform</b> team</div>",
		Tags:    []string{"work", "meetings"},
	}

	assert.True(t, Matches(entry, ""), "Empty query matches everything")
	assert.True(t, Matches(entry, "platform"), "Content match is case-insensitive and ignores markup")
	assert.True(t, Matches(entry, "2026-08"))
	assert.True(t, Matches(entry, "MEET"))
	assert.False(t, Matches(entry, "vacation"))
}

func TestRenderMarkdown(t *testing.T) {
	entry := model.Entry{
		Date:    "2026-08-31",
		Content: "<b>big</b> day",
		Tags:    []string{"work"},
	}
	out := RenderMarkdown(entry)
	assert.Contains(t, out, "# 2026-08-31")
	assert.Contains(t, out, "**big** day")
	assert.Contains(t, out, "Tags: work")
}

func TestRenderAllMarkdown(t *testing.T) {
	entries := []model.Entry{
		{Date: "2026-08-30", Content: "first day"},
		{Date: "2026-08-31", Content: "second day"},
	}
	out := RenderAllMarkdown(entries)
	assert.Contains(t, out, "# 2026-08-30")
	assert.Contains(t, out, "# 2026-08-31")
	assert.Contains(t, out, "\n---\n")
}

func TestRenderText(t *testing.T) {
	entry := model.Entry{Date: "2026-08-31", Content: "<div>just text</div>"}
	out := RenderText(entry)
	assert.Contains(t, out, "2026-08-31")
	assert.Contains(t, out, "just text")
	assert.NotContains(t, out, "Tags:")
}
