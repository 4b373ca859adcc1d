package caption

import (
	"fmt"
	"strings"
)

// Strategy selects how caption text is split into pages.
type Strategy int

const (
	// StrategyWord shows one whitespace-delimited word per page.
	StrategyWord Strategy = iota
	// StrategyFit packs the longest run of words whose block fits the viewport fraction.
	StrategyFit
)

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "word":
		return StrategyWord, nil
	case "fit":
		return StrategyFit, nil
	}
	return StrategyWord, fmt.Errorf("unknown paging strategy %q", s)
}

func (s Strategy) String() string {
	if s == StrategyFit {
		return "fit"
	}
	return "word"
}

// Range is a half-open word range [Start, End).
type Range struct {
	Start, End int
}

func (r Range) Contains(word int) bool {
	return r.Start <= word && word < r.End
}

// Pagination is the immutable paging of one caption text.
// Ranges partition [0, WordCount) in order.
type Pagination struct {
	Pages     []string
	Ranges    []Range
	WordCount int
}

// Last is the index of the final page.
func (p Pagination) Last() int {
	return len(p.Pages) - 1
}

type Pager interface {
	Paginate(words []string) Pagination
}

// Words splits caption text on whitespace.
func Words(text string) []string {
	return strings.Fields(text)
}

func emptyPagination() Pagination {
	return Pagination{Pages: []string{""}, Ranges: []Range{{0, 0}}}
}

type WordPager struct{}

func (WordPager) Paginate(words []string) Pagination {
	if len(words) == 0 {
		return emptyPagination()
	}
	p := Pagination{
		Pages:     make([]string, len(words)),
		Ranges:    make([]Range, len(words)),
		WordCount: len(words),
	}
	for i, w := range words {
		p.Pages[i] = w
		p.Ranges[i] = Range{i, i + 1}
	}
	return p
}

// Measurer reports the rendered block height of a candidate page.
// Heights must not decrease as words are appended.
type Measurer interface {
	BlockHeight(text string) float64
}

// FitPager packs greedy pages: each page is the longest run of words starting
// at the previous page's end whose block height fits Fraction*ViewportHeight.
// A single word that never fits still gets its own page.
type FitPager struct {
	Measurer       Measurer
	ViewportHeight float64
	Fraction       float64
}

func (f FitPager) Paginate(words []string) Pagination {
	n := len(words)
	if n == 0 {
		return emptyPagination()
	}
	limit := f.ViewportHeight * f.Fraction
	fits := func(start, end int) bool {
		return f.Measurer.BlockHeight(strings.Join(words[start:end], " ")) <= limit
	}

	p := Pagination{WordCount: n}
	for start := 0; start < n; {
		// binary search for the largest end in [start+1, n] that fits
		best := start + 1
		lo, hi := start+2, n
		for lo <= hi {
			mid := lo + (hi-lo)/2
			if fits(start, mid) {
				best = mid
				lo = mid + 1
			} else {
				hi = mid - 1
			}
		}
		p.Pages = append(p.Pages, strings.Join(words[start:best], " "))
		p.Ranges = append(p.Ranges, Range{start, best})
		start = best
	}
	return p
}

// EstimateMeasurer approximates wrapped text height for hosts that cannot
// measure rendered text.
type EstimateMeasurer struct {
	CharsPerLine int
	LineHeight   float64
}

func (m EstimateMeasurer) BlockHeight(text string) float64 {
	perLine := m.CharsPerLine
	if perLine <= 0 {
		perLine = 32
	}
	lines, width := 1, 0
	for _, w := range strings.Fields(text) {
		l := len([]rune(w))
		switch {
		case width == 0:
			width = l
		case width+1+l <= perLine:
			width += 1 + l
		default:
			lines++
			width = l
		}
	}
	return float64(lines) * m.LineHeight
}

// PageFor maps a playback progress ratio to a page index:
// wordIndex = floor(clamp(ratio, 0, 1) * WordCount), then the first range
// containing wordIndex, falling back to the last page.
func PageFor(p Pagination, ratio float64) int {
	if ratio != ratio || ratio < 0 { // NaN or negative
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	word := int(ratio * float64(p.WordCount))
	for i, r := range p.Ranges {
		if r.Contains(word) {
			return i
		}
	}
	return max(p.Last(), 0)
}
