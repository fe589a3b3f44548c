package search

import (
	"testing"

	"github.com/nordlys-labs/qfrm/internal/domain/metric"
	"github.com/nordlys-labs/qfrm/internal/domain/result"
)

func ids(results []result.Result) []string {
	out := make([]string, len(results))
	for i := range results {
		out[i] = results[i].ID()
	}
	return out
}

func TestMergeRanked_HigherIsBetter(t *testing.T) {
	lists := [][]result.Result{
		{hit("a1", 0.9), hit("a2", 0.4)},
		{hit("b1", 0.8), hit("b2", 0.6)},
		{hit("c1", 0.5)},
	}

	merged := mergeRanked(lists, metric.Cosine, 10)
	want := []string{"a1", "b1", "b2", "c1", "a2"}
	got := ids(merged)
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("merged order %v, want %v", got, want)
		}
	}
}

func TestMergeRanked_LowerIsBetter(t *testing.T) {
	lists := [][]result.Result{
		{hit("a1", 0.1), hit("a2", 0.9)},
		{hit("b1", 0.2), hit("b2", 0.5)},
	}

	merged := mergeRanked(lists, metric.Euclid, 10)
	want := []string{"a1", "b1", "b2", "a2"}
	got := ids(merged)
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("merged order %v, want %v", got, want)
		}
	}
}

func TestMergeRanked_TruncatesToTopK(t *testing.T) {
	lists := [][]result.Result{
		{hit("a1", 0.9), hit("a2", 0.8)},
		{hit("b1", 0.7), hit("b2", 0.6)},
	}

	merged := mergeRanked(lists, metric.Cosine, 2)
	if len(merged) != 2 {
		t.Fatalf("got %d results, want 2", len(merged))
	}
	if merged[0].ID() != "a1" || merged[1].ID() != "a2" {
		t.Errorf("merged order %v", ids(merged))
	}
}

func TestMergeRanked_TieBreakByID(t *testing.T) {
	// Equal scores across lists: order must be deterministic by id,
	// regardless of list order.
	lists := [][]result.Result{
		{hit("zeta", 0.5)},
		{hit("alpha", 0.5)},
		{hit("mid", 0.5)},
	}
	reversed := [][]result.Result{lists[2], lists[1], lists[0]}

	want := []string{"alpha", "mid", "zeta"}
	for _, input := range [][][]result.Result{lists, reversed} {
		got := ids(mergeRanked(input, metric.Cosine, 10))
		for i, w := range want {
			if got[i] != w {
				t.Fatalf("merged order %v, want %v", got, want)
			}
		}
	}
}

func TestMergeRanked_EmptyLists(t *testing.T) {
	if got := mergeRanked(nil, metric.Cosine, 5); len(got) != 0 {
		t.Errorf("nil lists produced %d results", len(got))
	}
	lists := [][]result.Result{{}, {hit("a", 0.5)}, {}}
	got := mergeRanked(lists, metric.Cosine, 5)
	if len(got) != 1 || got[0].ID() != "a" {
		t.Errorf("merged %v", ids(got))
	}
}
