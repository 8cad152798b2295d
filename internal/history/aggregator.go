// Package history turns a user's watched-film slugs into per-title
// recommendation batches.
package history

import (
	"context"
	"errors"

	"github.com/aryannaik/reelmatch/internal/logging"
	"github.com/aryannaik/reelmatch/internal/metrics"
	"github.com/aryannaik/reelmatch/internal/similarity"
	"github.com/aryannaik/reelmatch/internal/slug"
)

// ErrEmptyHistory is returned when there are no watched items to work from.
// A history whose items all miss the catalog is not an error; it yields a
// Run with no seeds.
var ErrEmptyHistory = errors.New("no watched films found")

// TitleFinder resolves an exact catalog title to a row.
type TitleFinder interface {
	FindTitle(title string) (int, bool)
}

// Recommender ranks the catalog against one row.
type Recommender interface {
	Recommend(row, k int) []similarity.Result
}

// Options tune aggregation.
type Options struct {
	// DedupeAcrossSeeds drops a movie from a seed's list when an earlier
	// seed already recommended it.
	DedupeAcrossSeeds bool
}

// Seed is one matched watched title and the movies recommended for it.
type Seed struct {
	Title           string              `json:"title"`
	Recommendations []similarity.Result `json:"recommendations"`
}

// Run is the outcome of one aggregation.
type Run struct {
	Seeds []Seed `json:"seeds"`
	// Seen lists every distinct normalized title processed, in input order.
	Seen []string `json:"seen"`
	// Unmatched lists the subset of Seen with no catalog entry.
	Unmatched []string `json:"unmatched"`
}

// Aggregator walks a watch history in order. It keeps no state between
// calls and is safe for concurrent use.
type Aggregator struct {
	titles TitleFinder
	engine Recommender
	opts   Options
}

// NewAggregator returns an aggregator over the given catalog and engine.
func NewAggregator(titles TitleFinder, engine Recommender, opts Options) *Aggregator {
	return &Aggregator{titles: titles, engine: engine, opts: opts}
}

// Aggregate normalizes each item, skips titles already seen, looks the
// rest up and collects perTitleK recommendations per match. It stops as
// soon as targetCount seeds are collected.
func (a *Aggregator) Aggregate(ctx context.Context, items []string, targetCount, perTitleK int) (*Run, error) {
	if len(items) == 0 {
		return nil, ErrEmptyHistory
	}

	logger := logging.Ctx(ctx)
	run := &Run{
		Seeds:     []Seed{},
		Seen:      []string{},
		Unmatched: []string{},
	}
	seen := make(map[string]struct{}, len(items))
	var recommended map[int]struct{}
	if a.opts.DedupeAcrossSeeds {
		recommended = make(map[int]struct{})
	}

	for _, raw := range items {
		if len(run.Seeds) >= targetCount {
			break
		}

		title := slug.Normalize(raw)
		if _, dup := seen[title]; dup {
			metrics.AggregationItems.WithLabelValues("duplicate").Inc()
			continue
		}
		seen[title] = struct{}{}
		run.Seen = append(run.Seen, title)

		row, ok := a.titles.FindTitle(title)
		if !ok {
			metrics.AggregationItems.WithLabelValues("unmatched").Inc()
			logger.Debug().Str("slug", raw).Str("title", title).Msg("Watched film not in catalog, skipping")
			run.Unmatched = append(run.Unmatched, title)
			continue
		}

		metrics.AggregationItems.WithLabelValues("matched").Inc()
		run.Seeds = append(run.Seeds, Seed{
			Title:           title,
			Recommendations: a.recommend(row, perTitleK, recommended),
		})
	}

	logger.Debug().
		Int("items", len(items)).
		Int("seen", len(run.Seen)).
		Int("seeds", len(run.Seeds)).
		Int("unmatched", len(run.Unmatched)).
		Msg("Watch history aggregated")

	return run, nil
}

// recommend returns k results for row. With a non-nil recommended set it
// also filters out and records movies handed out for earlier seeds.
func (a *Aggregator) recommend(row, k int, recommended map[int]struct{}) []similarity.Result {
	if recommended == nil || k <= 0 {
		return a.engine.Recommend(row, k)
	}

	// Over-fetch so the list can still fill to k after filtering.
	candidates := a.engine.Recommend(row, k+len(recommended))
	out := make([]similarity.Result, 0, k)
	for _, r := range candidates {
		if _, dup := recommended[r.ID]; dup {
			continue
		}
		out = append(out, r)
		if len(out) == k {
			break
		}
	}
	for _, r := range out {
		recommended[r.ID] = struct{}{}
	}
	return out
}
