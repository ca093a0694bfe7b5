package text

import (
	"unicode"

	"impar/api/internal/content"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter breaks text into chunks of at most Size characters, preferring
// the earliest separator that occurs in the text. Consecutive chunks share
// at most Overlap characters. Every chunk is an exact substring of its input
// and separators stay attached to the end of the piece they terminate.
type Splitter struct {
	Size       int
	Overlap    int
	Separators []string
}

func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Splitter{Size: size, Overlap: overlap, Separators: DefaultSeparators}
}

// span is a half-open rune range into the text being split.
type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

// SplitText returns the chunks of a single text. Blank input yields nothing.
func (s *Splitter) SplitText(text string) []string {
	runes := []rune(text)
	var out []string
	for _, sp := range s.spans(runes) {
		out = append(out, string(runes[sp.start:sp.end]))
	}
	return out
}

// SplitUnits chunks every unit in order. Each chunk inherits its unit's
// metadata unchanged.
func (s *Splitter) SplitUnits(units []content.Unit) []content.Chunk {
	var chunks []content.Chunk
	for _, u := range units {
		md := u.Metadata()
		for _, t := range s.SplitText(u.Text) {
			chunks = append(chunks, content.Chunk{Text: t, Metadata: md})
		}
	}
	return chunks
}

func (s *Splitter) spans(runes []rune) []span {
	all := span{0, len(runes)}
	var raw []span
	if all.len() <= s.Size {
		raw = []span{all}
	} else {
		raw = s.split(runes, all, s.Separators)
	}

	out := raw[:0]
	for _, sp := range raw {
		if !isBlank(runes[sp.start:sp.end]) {
			out = append(out, sp)
		}
	}
	return out
}

func (s *Splitter) split(runes []rune, whole span, separators []string) []span {
	sep, rest := pickSeparator(runes[whole.start:whole.end], separators)
	pieces := cut(runes, whole, []rune(sep))

	var chunks []span
	var good []span
	for _, p := range pieces {
		if p.len() <= s.Size {
			good = append(good, p)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, p)
			continue
		}
		chunks = append(chunks, s.split(runes, p, rest)...)
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good)...)
	}
	return chunks
}

// merge packs adjacent pieces into chunks no longer than Size, carrying up
// to Overlap characters of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []span) []span {
	var chunks []span
	var window []span
	total := 0

	for _, p := range pieces {
		l := p.len()
		if total+l > s.Size && len(window) > 0 {
			chunks = append(chunks, span{window[0].start, window[len(window)-1].end})
			for total > s.Overlap || (total+l > s.Size && total > 0) {
				total -= window[0].len()
				window = window[1:]
			}
		}
		window = append(window, p)
		total += l
	}
	if len(window) > 0 {
		chunks = append(chunks, span{window[0].start, window[len(window)-1].end})
	}
	return chunks
}

func pickSeparator(runes []rune, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" || indexRunes(runes, []rune(sep), 0) >= 0 {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// cut splits whole at every occurrence of sep, keeping sep at the end of
// the preceding piece. An empty sep yields one piece per rune.
// Pieces are contiguous, so together they always cover whole.
func cut(runes []rune, whole span, sep []rune) []span {
	if len(sep) == 0 {
		pieces := make([]span, 0, whole.len())
		for i := whole.start; i < whole.end; i++ {
			pieces = append(pieces, span{i, i + 1})
		}
		return pieces
	}

	var pieces []span
	start := whole.start
	for {
		idx := indexRunes(runes[:whole.end], sep, start)
		if idx < 0 {
			break
		}
		end := idx + len(sep)
		if idx == start && len(pieces) > 0 {
			// runs of separators stay with the piece they follow
			pieces[len(pieces)-1].end = end
		} else {
			pieces = append(pieces, span{start, end})
		}
		start = end
	}
	if start < whole.end {
		pieces = append(pieces, span{start, whole.end})
	}
	return pieces
}

func indexRunes(hay, needle []rune, from int) int {
	for i := from; i+len(needle) <= len(hay); i++ {
		match := true
		for j := range needle {
			if hay[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func isBlank(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
