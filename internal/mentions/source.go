// Package mentions keeps persisted mention records in step with content units.
//
// A scan builds an alias index for the unit's novel, runs the scanner over the
// unit's text fields and hands the result to the Synchronizer, which writes the
// minimal set of inserts, updates and deletes. Scans of one unit are serialized
// by a latest-wins lease.
package mentions

import (
	"unicode/utf8"

	"github.com/kittclouds/codexkitt/internal/store"
	"github.com/kittclouds/codexkitt/pkg/mention"
)

// TextSource is any content unit that can be scanned.
type TextSource interface {
	UnitID() string
	UnitKind() store.UnitKind
	UnitNovelID() string
	PrimaryText() string
	// SecondaryText is a second scanned field (a scene summary). ok is false when absent.
	SecondaryText() (text string, ok bool)
}

// UnitRef identifies a content unit by kind and ID.
type UnitRef struct {
	Kind store.UnitKind
	ID   string
}

func (r UnitRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// Occurrence is what one scan found for one entity, across all fields of a unit.
type Occurrence struct {
	Count     int
	Positions []int
	Source    string
}

// Merge combines the hits of a unit's primary and secondary fields.
//
// Secondary positions are shifted past the primary text plus one separator
// rune, as if both fields had been scanned as one string. Source records which
// fields contributed.
func Merge(primaryText string, primary, secondary mention.Result) map[string]Occurrence {
	out := make(map[string]Occurrence, len(primary)+len(secondary))

	for id, hit := range primary {
		out[id] = Occurrence{
			Count:     hit.Count,
			Positions: append([]int{}, hit.Positions...),
			Source:    store.SourceContent,
		}
	}

	if len(secondary) == 0 {
		return out
	}

	offset := utf8.RuneCountInString(primaryText) + 1
	for id, hit := range secondary {
		shifted := make([]int, len(hit.Positions))
		for i, p := range hit.Positions {
			shifted[i] = p + offset
		}

		occ, ok := out[id]
		if !ok {
			out[id] = Occurrence{Count: hit.Count, Positions: shifted, Source: store.SourceSummary}
			continue
		}
		occ.Count += hit.Count
		occ.Positions = append(occ.Positions, shifted...)
		occ.Source = store.SourceBoth
		out[id] = occ
	}
	return out
}
