package slides

import (
	"fmt"
	"strings"
)

const (
	// DefaultBackground is used when a record carries no background reference.
	DefaultBackground = "/images/default.svg"
	// DefaultAction is the narrator pose used when a section carries none.
	DefaultAction = "idle"
	// IntroName is the display name of the synthesized intro slide.
	IntroName = "intro"
)

// Section is one caption+audio+pose unit of a slide.
type Section struct {
	Text     string `yaml:"text" json:"text"`
	AudioRef string `yaml:"audio" json:"audio"`
	Action   string `yaml:"action" json:"action"`
}

// Slide is one unit of vertical navigation. Slides are immutable once loaded.
type Slide struct {
	ID         string    `yaml:"id,omitempty" json:"id,omitempty"`
	Title      string    `yaml:"title" json:"title"`
	Background string    `yaml:"background" json:"background"`
	Sections   []Section `yaml:"sections" json:"sections"`
	SourceURL  string    `yaml:"sourceUrl,omitempty" json:"sourceUrl,omitempty"`
}

// Name is the display name reported to observers.
func (s Slide) Name() string {
	switch {
	case s.Title != "":
		return s.Title
	case s.ID != "":
		return s.ID
	default:
		return s.Background
	}
}

// Record is the loose shape a slide source returns. Every field is optional.
// A record either lists Sections or carries a single section inline.
type Record struct {
	ID         string          `yaml:"id,omitempty" json:"id,omitempty"`
	Title      string          `yaml:"title,omitempty" json:"title,omitempty"`
	Background string          `yaml:"background,omitempty" json:"background,omitempty"`
	SourceURL  string          `yaml:"sourceUrl,omitempty" json:"sourceUrl,omitempty"`
	Sections   []SectionRecord `yaml:"sections,omitempty" json:"sections,omitempty"`

	Text   string `yaml:"text,omitempty" json:"text,omitempty"`
	Audio  string `yaml:"audio,omitempty" json:"audio,omitempty"`
	Action string `yaml:"action,omitempty" json:"action,omitempty"`
}

type SectionRecord struct {
	Text   string `yaml:"text,omitempty" json:"text,omitempty"`
	Audio  string `yaml:"audio,omitempty" json:"audio,omitempty"`
	Action string `yaml:"action,omitempty" json:"action,omitempty"`
}

// Normalize turns source records into slides, substituting fallbacks for
// missing fields. Slides with neither title nor id are named slide-N (1-based).
func Normalize(records []Record) []Slide {
	out := make([]Slide, 0, len(records))
	for i, r := range records {
		out = append(out, r.toSlide(i+1))
	}
	return out
}

func (r Record) toSlide(position int) Slide {
	s := Slide{
		ID:         strings.TrimSpace(r.ID),
		Title:      strings.TrimSpace(r.Title),
		Background: strings.TrimSpace(r.Background),
		SourceURL:  strings.TrimSpace(r.SourceURL),
	}
	if s.Background == "" {
		s.Background = DefaultBackground
	}
	if s.Title == "" && s.ID == "" {
		s.ID = fmt.Sprintf("slide-%d", position)
	}

	raw := r.Sections
	if len(raw) == 0 {
		raw = []SectionRecord{{Text: r.Text, Audio: r.Audio, Action: r.Action}}
	}
	for _, sr := range raw {
		sec := Section{
			Text:     strings.TrimSpace(sr.Text),
			AudioRef: strings.TrimSpace(sr.Audio),
			Action:   strings.TrimSpace(sr.Action),
		}
		if sec.Action == "" {
			sec.Action = DefaultAction
		}
		s.Sections = append(s.Sections, sec)
	}
	return s
}

// ToRecords is the inverse of Normalize, used when a deck is written back out.
func ToRecords(slides []Slide) []Record {
	out := make([]Record, 0, len(slides))
	for _, s := range slides {
		r := Record{ID: s.ID, Title: s.Title, Background: s.Background, SourceURL: s.SourceURL}
		for _, sec := range s.Sections {
			r.Sections = append(r.Sections, SectionRecord{Text: sec.Text, Audio: sec.AudioRef, Action: sec.Action})
		}
		out = append(out, r)
	}
	return out
}
