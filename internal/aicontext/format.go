package aicontext

import (
	"strings"

	"github.com/kittclouds/codexkitt/pkg/tokens"
)

var arrows = map[string]string{
	DirOutgoing:      "→",
	DirIncoming:      "←",
	DirBidirectional: "↔",
}

// RenderItem writes one entity block.
//
//	[Character] Alice
//	Aliases: Al
//	Description: ...
//	Details:
//	- age: 7
//	Relations:
//	- lives_in → Castle (since birth)
func RenderItem(it *Item) string {
	var b strings.Builder

	b.WriteString("[")
	b.WriteString(it.Type.Label())
	b.WriteString("] ")
	b.WriteString(it.Name)
	if it.IncludedViaRelation {
		b.WriteString(" (related)")
	}
	b.WriteByte('\n')

	if len(it.Aliases) > 0 {
		b.WriteString("Aliases: ")
		b.WriteString(strings.Join(it.Aliases, ", "))
		b.WriteByte('\n')
	}
	if desc := strings.TrimSpace(it.Description); desc != "" {
		b.WriteString("Description: ")
		b.WriteString(desc)
		b.WriteByte('\n')
	}
	if len(it.Details) > 0 {
		b.WriteString("Details:\n")
		for _, d := range it.Details {
			b.WriteString("- ")
			b.WriteString(d.Key)
			b.WriteString(": ")
			b.WriteString(d.Value)
			b.WriteByte('\n')
		}
	}
	if len(it.Relations) > 0 {
		b.WriteString("Relations:\n")
		for _, r := range it.Relations {
			b.WriteString("- ")
			b.WriteString(RenderRelation(r))
			b.WriteByte('\n')
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// RenderRelation formats a relation as "rel_type → Other (label)".
func RenderRelation(r RelationLine) string {
	s := r.RelType + " " + arrows[r.Direction] + " " + r.OtherName
	if r.Label != "" {
		s += " (" + r.Label + ")"
	}
	return s
}

// render joins item blocks and refreshes per-item token costs.
func render(items []*Item, est tokens.Estimator) string {
	blocks := make([]string, 0, len(items))
	for _, it := range items {
		if it.Text == "" {
			it.Text = RenderItem(it)
		}
		it.Tokens = est.Estimate(it.Text)
		blocks = append(blocks, it.Text)
	}
	return strings.Join(blocks, "\n\n")
}

// Wrap encloses rendered context for prompt interpolation.
func Wrap(text string) string {
	if text == "" {
		return ""
	}
	return "<codex>\n" + text + "\n</codex>"
}
