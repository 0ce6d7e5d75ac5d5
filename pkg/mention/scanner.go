// Package mention finds codex entity mentions in prose.
// All terms of an alias index are compiled into one Aho-Corasick automaton so
// a text is walked once regardless of how many entities the novel has.
package mention

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"

	"github.com/kittclouds/codexkitt/pkg/alias"
)

// Hit aggregates the mentions of one entity.
// Positions are zero-based character (rune) offsets into the scanned text.
type Hit struct {
	Count     int   `json:"count"`
	Positions []int `json:"positions"`
}

// Result maps entity ID to its hits.
type Result map[string]Hit

// EntityIDs returns the detected entity IDs in sorted order.
func (r Result) EntityIDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of mentions of id, zero when absent.
func (r Result) Count(id string) int {
	return r[id].Count
}

// Scanner is a compiled alias index. Safe for concurrent use once built.
type Scanner struct {
	entries []alias.Entry // index-aligned with automaton patterns
	ac      ahocorasick.AhoCorasick
}

// NewScanner compiles the index terms, longest first.
func NewScanner(ix *alias.Index) *Scanner {
	terms := ix.Terms()
	s := &Scanner{entries: make([]alias.Entry, len(terms))}
	if len(terms) == 0 {
		return s
	}
	for i, term := range terms {
		s.entries[i], _ = ix.Lookup(term)
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: false, // text and terms are lowered rune by rune
		MatchOnlyWholeWords:  false, // boundaries are checked with unicode classes below
		MatchKind:            ahocorasick.StandardMatch,
		DFA:                  false,
	})
	s.ac = builder.Build(terms)
	return s
}

// Scan is the one-shot form of NewScanner(ix).Scan(text).
func Scan(text string, ix *alias.Index) Result {
	return NewScanner(ix).Scan(text)
}

type candidate struct {
	start, end int // byte offsets into the lowered text
	pattern    int
}

// Scan reports whole-word, case-insensitive mentions.
//
// When candidates overlap, the leftmost one wins and, at the same start, the
// longer term wins. Any whitespace run in the text matches the single space
// of a multi-word term. Blank text yields an empty result.
func (s *Scanner) Scan(text string) Result {
	result := Result{}
	if s == nil || len(s.entries) == 0 || strings.TrimSpace(text) == "" {
		return result
	}

	lowered, origin := fold(text)

	var cands []candidate
	iter := s.ac.IterOverlapping(lowered)
	for {
		m := iter.Next()
		if m == nil {
			break
		}
		if !atWordBoundary(lowered, m.Start(), m.End()) {
			continue
		}
		cands = append(cands, candidate{start: m.Start(), end: m.End(), pattern: m.Pattern()})
	}

	// Pattern order is longest-first, so a lower index at the same start is the longer term.
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].start != cands[j].start {
			return cands[i].start < cands[j].start
		}
		return cands[i].pattern < cands[j].pattern
	})

	claimedTo := 0
	runePos, bytePos := 0, 0
	for _, c := range cands {
		if c.start < claimedTo {
			continue
		}
		claimedTo = c.end

		runePos += utf8.RuneCountInString(lowered[bytePos:c.start])
		bytePos = c.start

		id := s.entries[c.pattern].EntityID
		hit := result[id]
		hit.Count++
		hit.Positions = append(hit.Positions, origin[runePos])
		result[id] = hit
	}

	return result
}

// fold lowercases text and collapses every whitespace run to one space, the
// same shape alias terms are normalized to. origin maps each rune of the
// folded text back to its rune offset in text.
func fold(text string) (folded string, origin []int) {
	var b strings.Builder
	b.Grow(len(text))
	origin = make([]int, 0, len(text))

	inSpace := false
	i := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
				origin = append(origin, i)
			}
			inSpace = true
			i++
			continue
		}
		inSpace = false
		b.WriteRune(unicode.ToLower(r))
		origin = append(origin, i)
		i++
	}
	return b.String(), origin
}

// IsWordRune reports whether r continues a word.
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func atWordBoundary(s string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(s[:start]); IsWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		if r, _ := utf8.DecodeRuneInString(s[end:]); IsWordRune(r) {
			return false
		}
	}
	return true
}
