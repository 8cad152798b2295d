// Package similarity ranks catalog rows by cosine similarity to a query.
package similarity

import (
	"sort"
	"time"

	"github.com/aryannaik/reelmatch/internal/catalog"
	"github.com/aryannaik/reelmatch/internal/metrics"
	"github.com/aryannaik/reelmatch/internal/vector"
)

// Result is one ranked movie.
type Result struct {
	ID    int     `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"similarity"`
}

// Engine computes a full similarity pass per query. It holds no mutable
// state and can be shared by concurrent requests.
type Engine struct {
	store *catalog.Store
}

// NewEngine returns an engine over store.
func NewEngine(store *catalog.Store) *Engine {
	return &Engine{store: store}
}

type scored struct {
	row   int
	score float64
}

// Recommend returns up to k movies most similar to the movie at row,
// never including row itself. Equal scores keep catalog order.
//
// row must be in [0, RowCount()); callers translate id or title lookups
// into a row first. Recommend panics otherwise.
func (e *Engine) Recommend(row, k int) []Result {
	n := e.store.RowCount()
	if row < 0 || row >= n {
		panic("similarity: row index out of range")
	}
	if k <= 0 {
		return []Result{}
	}
	return e.rank(e.store.VectorAt(row), e.store.NormAt(row), k, row)
}

// RecommendVector ranks every catalog row against an arbitrary query
// vector and returns the top k.
func (e *Engine) RecommendVector(query vector.Sparse, k int) []Result {
	if k <= 0 {
		return []Result{}
	}
	return e.rank(query, vector.Norm(query), k, -1)
}

func (e *Engine) rank(query vector.Sparse, queryNorm float64, k, exclude int) []Result {
	defer metrics.ObserveSimilarityQuery(time.Now())

	n := e.store.RowCount()
	scores := make([]scored, 0, n)
	for r := 0; r < n; r++ {
		if r == exclude {
			continue
		}
		s := vector.CosineWithNorms(query, e.store.VectorAt(r), queryNorm, e.store.NormAt(r))
		scores = append(scores, scored{row: r, score: s})
	}

	// Rows were appended in ascending order, so a stable sort keeps the
	// lower row first among equal scores.
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].score > scores[b].score })

	if k > len(scores) {
		k = len(scores)
	}
	out := make([]Result, k)
	for i := 0; i < k; i++ {
		entry := e.store.EntryAt(scores[i].row)
		out[i] = Result{ID: entry.ID, Title: entry.Title, Score: scores[i].score}
	}
	return out
}
