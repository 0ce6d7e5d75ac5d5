package aicontext

import (
	"math"

	"github.com/kittclouds/codexkitt/pkg/tokens"
)

// TokenLimit applies the context reservation to a model's window.
// A reserve outside (0, 1) uses the full window. modelLimit <= 0 means no limit.
func TokenLimit(modelLimit int, reserve float64) int {
	if modelLimit <= 0 {
		return 0
	}
	if reserve > 0 && reserve < 1 {
		return int(math.Floor(float64(modelLimit) * reserve))
	}
	return modelLimit
}

// fit drops unprotected items until the rendered text fits limit.
//
// The victim is always the unprotected item at the deepest cascade level,
// latest discovered first. Text is re-rendered and re-estimated after every
// drop. When only protected items remain the payload is flagged over limit.
func fit(items []*Item, limit int, est tokens.Estimator) *Payload {
	p := &Payload{TokenLimit: limit, Dropped: []string{}}

	text := render(items, est)
	total := est.Estimate(text)

	for limit > 0 && total > limit {
		victim := -1
		for i, it := range items {
			if it.Protected() {
				continue
			}
			if victim < 0 || it.Depth >= items[victim].Depth {
				victim = i
			}
		}
		if victim < 0 {
			p.OverLimit = true
			break
		}

		p.Dropped = append(p.Dropped, items[victim].ID)
		items = append(items[:victim:victim], items[victim+1:]...)
		text = render(items, est)
		total = est.Estimate(text)
	}

	p.Items = items
	p.Text = text
	p.TotalTokens = total
	p.Breakdown = make(map[string]int, len(items))
	for _, it := range items {
		p.Breakdown[it.ID] = it.Tokens
	}
	if limit > 0 {
		p.UsagePercentage = math.Round(float64(total)/float64(limit)*10000) / 100
	}
	return p
}
