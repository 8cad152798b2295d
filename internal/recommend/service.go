// Package recommend ties the catalog, the similarity engine and the watch
// history pipeline together behind the operations the API exposes.
package recommend

import (
	"context"
	"time"

	"github.com/aryannaik/reelmatch/internal/catalog"
	"github.com/aryannaik/reelmatch/internal/history"
	"github.com/aryannaik/reelmatch/internal/logging"
	"github.com/aryannaik/reelmatch/internal/similarity"
)

// HistoryFetcher returns the raw film slugs a user has logged, most recent
// first.
type HistoryFetcher interface {
	FetchWatched(ctx context.Context, user string) ([]string, error)
}

// Status describes the loaded catalog.
type Status struct {
	Movies   int       `json:"movies"`
	Features int       `json:"features"`
	LoadedAt time.Time `json:"loadedAt"`
}

type Service struct {
	store      *catalog.Store
	engine     *similarity.Engine
	aggregator *history.Aggregator
	fetcher    HistoryFetcher
}

func NewService(store *catalog.Store, fetcher HistoryFetcher, opts history.Options) *Service {
	engine := similarity.NewEngine(store)
	return &Service{
		store:      store,
		engine:     engine,
		aggregator: history.NewAggregator(store, engine, opts),
		fetcher:    fetcher,
	}
}

// ByTitle returns the k movies most similar to the movie with this exact
// title. Errors match catalog.ErrNotFound when the title is unknown.
func (s *Service) ByTitle(ctx context.Context, title string, k int) ([]similarity.Result, error) {
	row, err := s.store.LookupByTitle(title)
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Debug().Str("title", title).Int("row", row).Int("k", k).Msg("Recommending by title")
	return s.engine.Recommend(row, k), nil
}

// ByID is ByTitle keyed by catalog id.
func (s *Service) ByID(ctx context.Context, id, k int) ([]similarity.Result, error) {
	row, err := s.store.LookupByID(id)
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Debug().Int("id", id).Int("row", row).Int("k", k).Msg("Recommending by id")
	return s.engine.Recommend(row, k), nil
}

// ForUser fetches user's diary and aggregates up to targetCount seeds of
// perTitleK recommendations each. Fetch failures match letterboxd.ErrFetch;
// an empty diary matches history.ErrEmptyHistory.
func (s *Service) ForUser(ctx context.Context, user string, targetCount, perTitleK int) (*history.Run, error) {
	slugs, err := s.fetcher.FetchWatched(ctx, user)
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Debug().Str("user", user).Int("films", len(slugs)).Msg("Fetched watch history")
	return s.aggregator.Aggregate(ctx, slugs, targetCount, perTitleK)
}

func (s *Service) Status() Status {
	return Status{
		Movies:   s.store.RowCount(),
		Features: s.store.Dim(),
		LoadedAt: s.store.LoadedAt(),
	}
}
