// Package split cuts document text into overlapping fragments sized for embedding.
//
// Sizes and offsets are counted in runes. A piece ends right after the coarsest
// separator found in its window (paragraph, line, sentence, word) and the next
// piece starts exactly overlap runes before that end.
package split

import (
	"errors"

	"github.com/kailas-cloud/knowchain/internal/domain"
)

// DefaultSeparators are tried in order, coarsest first. An empty string means
// a hard cut at the size limit.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// Piece is one fragment of text with its rune offset in the input.
type Piece struct {
	Text   string
	Offset int
}

// Splitter splits text with a fixed size, overlap and separator list.
type Splitter struct {
	maxSize    int
	overlap    int
	separators [][]rune
}

// New creates a Splitter. overlap must be smaller than maxSize.
func New(maxSize, overlap int) (*Splitter, error) {
	if maxSize <= 0 {
		return nil, errors.New("max size must be positive")
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, errors.New("overlap must be in [0, max size)")
	}

	seps := make([][]rune, len(DefaultSeparators))
	for i, s := range DefaultSeparators {
		seps[i] = []rune(s)
	}
	return &Splitter{maxSize: maxSize, overlap: overlap, separators: seps}, nil
}

// Split returns the pieces of text in order. Empty text yields no pieces;
// any other text yields at least one.
func (s *Splitter) Split(text string) []Piece {
	r := []rune(text)
	n := len(r)
	if n == 0 {
		return nil
	}

	var pieces []Piece
	start := 0
	for {
		if n-start <= s.maxSize {
			pieces = append(pieces, Piece{Text: string(r[start:]), Offset: start})
			return pieces
		}

		end := s.cut(r, start)
		pieces = append(pieces, Piece{Text: string(r[start:end]), Offset: start})

		next := end - s.overlap
		if next <= start {
			next = end
		}
		start = next
	}
}

// cut picks the end of the piece starting at start. The end always lies in
// (start+overlap, start+maxSize] so the cursor moves forward.
func (s *Splitter) cut(r []rune, start int) int {
	window := r[start : start+s.maxSize]
	for _, sep := range s.separators {
		if p := lastCut(window, sep); p > s.overlap {
			return start + p
		}
	}
	return start + s.maxSize
}

// lastCut returns the position just after the last occurrence of sep in
// window, or -1.
func lastCut(window, sep []rune) int {
	for i := len(window) - len(sep); i >= 0; i-- {
		if hasPrefix(window[i:], sep) {
			return i + len(sep)
		}
	}
	return -1
}

func hasPrefix(s, prefix []rune) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i := range prefix {
		if s[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Documents splits every document and numbers the fragments across all of them.
// Each fragment keeps the source, page and rune offset of its document.
func (s *Splitter) Documents(docs []domain.Document) []domain.Fragment {
	var out []domain.Fragment
	for _, doc := range docs {
		for _, p := range s.Split(doc.Text) {
			out = append(out, domain.Fragment{
				Source: doc.Source,
				Text:   p.Text,
				Page:   doc.Page,
				Offset: p.Offset,
				Seq:    len(out),
			})
		}
	}
	return out
}
