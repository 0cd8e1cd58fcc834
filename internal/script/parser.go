package script

import (
	"regexp"
	"strings"

	"github.com/podforge/podforge/internal/models"
)

var speakerLineRe = regexp.MustCompile(`^([A-Z][A-Za-z]+):\s*(.*)$`)

// Parse splits a raw script into ordered dialogue segments. A line of the
// form "Name: text" opens a new segment; other non-empty lines continue the
// current speaker. Text before the first speaker line is discarded.
func Parse(script string) []models.DialogueSegment {
	var (
		segments []models.DialogueSegment
		speaker  string
		text     []string
	)

	flush := func() {
		if speaker == "" || len(text) == 0 {
			return
		}
		segments = append(segments, models.DialogueSegment{
			Index:   len(segments),
			Speaker: speaker,
			Text:    strings.Join(text, " "),
		})
	}

	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := speakerLineRe.FindStringSubmatch(line)
		if m != nil {
			flush()
			speaker = m[1]
			text = text[:0]
			if m[2] != "" {
				text = append(text, m[2])
			}
			continue
		}

		if speaker != "" {
			text = append(text, line)
		}
	}
	flush()

	return segments
}
