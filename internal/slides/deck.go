package slides

import "fmt"

// Deck is an immutable snapshot of the slide list with the intro slide
// synthesized at index 0. Deck indices therefore run over [0, Total()-1]
// and index i > 0 refers to Slides[i-1].
type Deck struct {
	slides []Slide
}

func NewDeck(s []Slide) *Deck {
	cp := make([]Slide, len(s))
	copy(cp, s)
	return &Deck{slides: cp}
}

// SlideCount is the number of repository slides, intro excluded.
func (d *Deck) SlideCount() int {
	if d == nil {
		return 0
	}
	return len(d.slides)
}

// Total is SlideCount()+1.
func (d *Deck) Total() int {
	return d.SlideCount() + 1
}

// IsIntro reports whether index addresses the synthesized intro slide.
func IsIntro(index int) bool {
	return index <= 0
}

// At returns the repository slide for a deck index. The intro slide and
// out-of-range indices report ok=false.
func (d *Deck) At(index int) (Slide, bool) {
	if IsIntro(index) || index > d.SlideCount() {
		return Slide{}, false
	}
	return d.slides[index-1], true
}

// Sections returns the sections of the slide at index, nil for the intro.
func (d *Deck) Sections(index int) []Section {
	s, ok := d.At(index)
	if !ok {
		return nil
	}
	return s.Sections
}

// Name is the display name of the slide at index.
func (d *Deck) Name(index int) string {
	if IsIntro(index) {
		return IntroName
	}
	s, ok := d.At(index)
	if !ok {
		return fmt.Sprintf("slide-%d", index)
	}
	return s.Name()
}

// Slides returns a copy of the repository slides.
func (d *Deck) Slides() []Slide {
	cp := make([]Slide, d.SlideCount())
	if d != nil {
		copy(cp, d.slides)
	}
	return cp
}
