// Package transcript converts the survey platform's line-prefixed transcript
// into speaker-tagged turns.
package transcript

import (
	"strings"

	"github.com/MikeSquared-Agency/vignette/internal/script"
)

type Speaker int

const (
	SpeakerUser Speaker = iota
	SpeakerDirector
)

func (s Speaker) String() string {
	switch s {
	case SpeakerUser:
		return "user"
	case SpeakerDirector:
		return "director"
	default:
		return "unknown"
	}
}

// Turn is a single utterance in transcript order.
type Turn struct {
	Speaker Speaker
	Text    string
}

// Parser recognises the two speaker prefixes of one script.
type Parser struct {
	tags script.Tags
}

func NewParser(tags script.Tags) *Parser {
	return &Parser{tags: tags}
}

// Parse splits raw into turns. Blank, untagged and tag-only lines are dropped;
// it never fails.
func (p *Parser) Parse(raw string) []Turn {
	var turns []Turn
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var turn Turn
		switch {
		case strings.HasPrefix(line, p.tags.User):
			turn = Turn{Speaker: SpeakerUser, Text: strings.TrimSpace(strings.TrimPrefix(line, p.tags.User))}
		case strings.HasPrefix(line, p.tags.Director):
			turn = Turn{Speaker: SpeakerDirector, Text: strings.TrimSpace(strings.TrimPrefix(line, p.tags.Director))}
		default:
			continue
		}
		if turn.Text == "" {
			continue
		}
		turns = append(turns, turn)
	}
	return turns
}

// Render writes turns back into the platform's line format.
func (p *Parser) Render(turns []Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		if t.Speaker == SpeakerUser {
			b.WriteString(p.tags.User)
		} else {
			b.WriteString(p.tags.Director)
		}
		b.WriteByte(' ')
		b.WriteString(t.Text)
	}
	return b.String()
}

// WithOpening returns turns preceded by the scripted opening line, unless the
// transcript already starts with it. The input slice is not modified.
func WithOpening(turns []Turn, opening string) []Turn {
	opening = strings.TrimSpace(opening)
	if opening == "" {
		return turns
	}
	if len(turns) > 0 && turns[0].Speaker == SpeakerDirector && normalize(turns[0].Text) == normalize(opening) {
		return turns
	}
	out := make([]Turn, 0, len(turns)+1)
	out = append(out, Turn{Speaker: SpeakerDirector, Text: opening})
	return append(out, turns...)
}

// CountSpeaker returns how many turns were taken by s.
func CountSpeaker(turns []Turn, s Speaker) int {
	n := 0
	for _, t := range turns {
		if t.Speaker == s {
			n++
		}
	}
	return n
}

// CountAsked returns how many times prompt occurs in director turns,
// ignoring case and runs of whitespace.
func CountAsked(turns []Turn, prompt string) int {
	needle := normalize(prompt)
	if needle == "" {
		return 0
	}
	n := 0
	for _, t := range turns {
		if t.Speaker != SpeakerDirector {
			continue
		}
		n += strings.Count(normalize(t.Text), needle)
	}
	return n
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
