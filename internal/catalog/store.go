// Package catalog is the read-only vector store: movie metadata rows and
// their sparse feature vectors, aligned by row index.
package catalog

import (
	"fmt"
	"time"

	"github.com/aryannaik/reelmatch/internal/vector"
)

// Store is built once at startup and never mutated, so it is safe for
// concurrent readers without locking.
type Store struct {
	entries  []Entry
	vectors  []vector.Sparse
	norms    []float64
	dim      int
	byID     map[int]int
	byTitle  map[string]int
	loadedAt time.Time
}

// New builds a Store from in-memory rows. Entry.Row is assigned from the
// slice position. Titles may repeat; title lookup resolves to the first row.
func New(entries []Entry, vectors []vector.Sparse, dim int) (*Store, error) {
	if len(entries) != len(vectors) {
		return nil, fmt.Errorf("%w: %d metadata rows but %d vector rows", ErrDataLoad, len(entries), len(vectors))
	}
	if dim < 0 {
		return nil, fmt.Errorf("%w: negative dimensionality %d", ErrDataLoad, dim)
	}

	s := &Store{
		entries:  make([]Entry, len(entries)),
		vectors:  make([]vector.Sparse, len(vectors)),
		norms:    make([]float64, len(vectors)),
		dim:      dim,
		byID:     make(map[int]int, len(entries)),
		byTitle:  make(map[string]int, len(entries)),
		loadedAt: time.Now(),
	}

	for row, e := range entries {
		if prev, dup := s.byID[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d at rows %d and %d", ErrDataLoad, e.ID, prev, row)
		}
		v, err := vector.NewSparse(vectors[row].Indices, vectors[row].Values, dim)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrDataLoad, row, err)
		}

		e.Row = row
		s.entries[row] = e
		s.vectors[row] = v
		s.norms[row] = vector.Norm(v)
		s.byID[e.ID] = row
		if _, seen := s.byTitle[e.Title]; !seen {
			s.byTitle[e.Title] = row
		}
	}

	return s, nil
}

// RowCount returns the number of catalog rows.
func (s *Store) RowCount() int { return len(s.entries) }

// Dim returns the shared feature dimensionality.
func (s *Store) Dim() int { return s.dim }

// LoadedAt returns when the store was built.
func (s *Store) LoadedAt() time.Time { return s.loadedAt }

// EntryAt returns the metadata of a row. row must be in [0, RowCount()).
func (s *Store) EntryAt(row int) Entry { return s.entries[row] }

// VectorAt returns the feature vector of a row. row must be in [0, RowCount()).
func (s *Store) VectorAt(row int) vector.Sparse { return s.vectors[row] }

// NormAt returns the precomputed magnitude of a row's vector.
func (s *Store) NormAt(row int) float64 { return s.norms[row] }

// LookupByID returns the row of the movie with the given id.
func (s *Store) LookupByID(id int) (int, error) {
	row, ok := s.byID[id]
	if !ok {
		return 0, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return row, nil
}

// LookupByTitle returns the first row whose title matches exactly.
func (s *Store) LookupByTitle(title string) (int, error) {
	row, ok := s.FindTitle(title)
	if !ok {
		return 0, fmt.Errorf("%w: title %q", ErrNotFound, title)
	}
	return row, nil
}

// FindTitle is LookupByTitle without an error value, for loops where a
// miss is routine.
func (s *Store) FindTitle(title string) (int, bool) {
	row, ok := s.byTitle[title]
	return row, ok
}
