package tracking

import (
	"math"
	"sync"
	"time"
)

// pageState holds the page-scoped counters. Both reset whenever a page view
// is recorded.
type pageState struct {
	mu           sync.Mutex
	url          string
	enteredAt    time.Time
	scrollDepth  int
	interactions int
}

type pageSnapshot struct {
	URL          string
	EnteredAt    time.Time
	ScrollDepth  int
	Interactions int
}

// recordScroll keeps the highest percentage seen, clamped to [0,100].
func (p *pageState) recordScroll(percent float64) {
	if math.IsNaN(percent) {
		return
	}
	depth := int(math.Round(math.Max(0, math.Min(100, percent))))
	p.mu.Lock()
	if depth > p.scrollDepth {
		p.scrollDepth = depth
	}
	p.mu.Unlock()
}

func (p *pageState) recordInteraction() {
	p.mu.Lock()
	p.interactions++
	p.mu.Unlock()
}

// enter starts a new page and returns the state of the one being left.
func (p *pageState) enter(url string, at time.Time) pageSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := pageSnapshot{URL: p.url, EnteredAt: p.enteredAt, ScrollDepth: p.scrollDepth, Interactions: p.interactions}
	p.url = url
	p.enteredAt = at
	p.scrollDepth = 0
	p.interactions = 0
	return prev
}

func (p *pageState) snapshot() pageSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return pageSnapshot{URL: p.url, EnteredAt: p.enteredAt, ScrollDepth: p.scrollDepth, Interactions: p.interactions}
}
