package search

import (
	"container/heap"

	"github.com/nordlys-labs/qfrm/internal/domain/metric"
	"github.com/nordlys-labs/qfrm/internal/domain/result"
)

// mergeRanked k-way merges per-collection result lists, each already ordered
// best-first under m, into a single best-first list of at most topK hits.
// Equal scores break ties by document identifier ascending, so the merged
// order is deterministic regardless of which collection answered first.
func mergeRanked(lists [][]result.Result, m metric.Metric, topK int) []result.Result {
	h := &resultHeap{metric: m}
	for li := range lists {
		if len(lists[li]) > 0 {
			h.items = append(h.items, mergeCursor{list: li, pos: 0})
		}
	}
	h.lists = lists
	heap.Init(h)

	merged := make([]result.Result, 0, topK)
	for h.Len() > 0 && len(merged) < topK {
		cur := h.items[0]
		merged = append(merged, lists[cur.list][cur.pos])

		if cur.pos+1 < len(lists[cur.list]) {
			h.items[0].pos++
			heap.Fix(h, 0)
		} else {
			heap.Pop(h)
		}
	}
	return merged
}

type mergeCursor struct {
	list int
	pos  int
}

// resultHeap is a min-heap over cursor heads: the best-ranked head is at
// the root.
type resultHeap struct {
	items  []mergeCursor
	lists  [][]result.Result
	metric metric.Metric
}

func (h *resultHeap) Len() int { return len(h.items) }

func (h *resultHeap) Less(i, j int) bool {
	a := &h.lists[h.items[i].list][h.items[i].pos]
	b := &h.lists[h.items[j].list][h.items[j].pos]
	if a.Score() != b.Score() {
		return h.metric.Better(a.Score(), b.Score())
	}
	return a.ID() < b.ID()
}

func (h *resultHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *resultHeap) Push(x any) { h.items = append(h.items, x.(mergeCursor)) }

func (h *resultHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
