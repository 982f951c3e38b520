package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/icebox-app/icebox/internal/store"
)

// exportDateFormat renders creation dates in note headers.
const exportDateFormat = "02.01.2006"

// ExportMarkdown renders ideas into a single markdown document. It is a pure
// function of its input: identical ideas yield byte-identical note sections.
// Only the document header timestamp varies between calls.
func ExportMarkdown(ideas []store.Idea, title string, generatedAt time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "*Exported: %s*\n\n", generatedAt.Format("02.01.2006 15:04"))
	b.WriteString("---\n\n")

	for i := range ideas {
		b.WriteString(noteSection(&ideas[i]))
	}

	return b.String()
}

// noteSection renders one idea: header (star when valuable, a fixed label for
// voice since the audio cannot be embedded), optional context line, body, and
// a separator.
func noteSection(idea *store.Idea) string {
	var b strings.Builder

	star := ""
	if idea.IsValuable {
		star = "⭐ "
	}

	if idea.IdeaType == store.TypeVoice {
		fmt.Fprintf(&b, "## %s[voice note]\n", star)
	} else {
		date := time.UnixMilli(idea.CreatedAt).Format(exportDateFormat)
		fmt.Fprintf(&b, "## %s%s\n", star, date)
	}

	if idea.DayOfWeek != "" {
		fmt.Fprintf(&b, "*%s, %s*\n\n", idea.DayOfWeek, idea.TimeOfDay)
	}

	if idea.Content != "" && idea.IdeaType != store.TypeVoice {
		fmt.Fprintf(&b, "%s\n\n", idea.Content)
	}

	b.WriteString("---\n\n")
	return b.String()
}
