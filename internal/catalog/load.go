package catalog

import (
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"github.com/aryannaik/reelmatch/internal/logging"
	"github.com/aryannaik/reelmatch/internal/metrics"
	"github.com/aryannaik/reelmatch/internal/vector"
)

const defaultTable = "movies"

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// csrMatrix is the JSON form of a compressed sparse row matrix, i.e. the
// shape/indptr/indices/data components of a scipy CSR matrix.
type csrMatrix struct {
	Shape   [2]int    `json:"shape"`
	Indptr  []int64   `json:"indptr"`
	Indices []int32   `json:"indices"`
	Data    []float32 `json:"data"`
}

// Load reads both artifacts and builds the Store. Every failure wraps
// ErrDataLoad; a metadata row count that differs from the matrix row count
// is rejected here rather than discovered at query time.
func Load(ctx context.Context, src Sources) (*Store, error) {
	logger := logging.WithComponent("catalog")
	start := time.Now()

	entries, err := loadMetadata(ctx, src)
	if err != nil {
		return nil, err
	}

	vectors, dim, err := loadVectors(src.VectorsPath)
	if err != nil {
		return nil, err
	}

	store, err := New(entries, vectors, dim)
	if err != nil {
		return nil, err
	}

	metrics.CatalogRows.Set(float64(store.RowCount()))
	logger.Info().
		Int("rows", store.RowCount()).
		Int("dim", dim).
		Str("metadata", src.MetadataPath).
		Str("vectors", src.VectorsPath).
		Dur("took", time.Since(start)).
		Msg("Catalog loaded")

	return store, nil
}

func loadMetadata(ctx context.Context, src Sources) ([]Entry, error) {
	if _, err := os.Stat(src.MetadataPath); err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrDataLoad, err)
	}

	switch strings.ToLower(filepath.Ext(src.MetadataPath)) {
	case ".db", ".sqlite", ".sqlite3":
		table := src.Table
		if table == "" {
			table = defaultTable
		}
		return loadMetadataSQLite(ctx, src.MetadataPath, table)
	default:
		f, err := os.Open(src.MetadataPath)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata: %v", ErrDataLoad, err)
		}
		defer f.Close()
		return readMetadataCSV(f)
	}
}

// readMetadataCSV reads rows with at least an id and a title column, in
// any order. Row order defines the row index.
func readMetadataCSV(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: metadata: empty file", ErrDataLoad)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: metadata header: %v", ErrDataLoad, err)
	}

	idCol, titleCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "id":
			idCol = i
		case "title":
			titleCol = i
		}
	}
	if idCol < 0 || titleCol < 0 {
		return nil, fmt.Errorf("%w: metadata header needs id and title columns, got %v", ErrDataLoad, header)
	}

	var entries []Entry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: metadata line %d: %v", ErrDataLoad, line, err)
		}
		if idCol >= len(rec) || titleCol >= len(rec) {
			return nil, fmt.Errorf("%w: metadata line %d: %d fields", ErrDataLoad, line, len(rec))
		}
		id, err := strconv.Atoi(strings.TrimSpace(rec[idCol]))
		if err != nil {
			return nil, fmt.Errorf("%w: metadata line %d: invalid id %q", ErrDataLoad, line, rec[idCol])
		}
		entries = append(entries, Entry{ID: id, Title: rec[titleCol]})
	}

	return entries, nil
}

func loadMetadataSQLite(ctx context.Context, path, table string) ([]Entry, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", ErrDataLoad, table)
	}

	db, err := OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDataLoad, path, err)
	}
	defer db.Close()

	return queryMetadata(ctx, db, table)
}

// OpenSQLite opens a SQLite database with the modernc.org/sqlite driver.
// Pass ":memory:" for an in-memory database.
func OpenSQLite(dsn string) (*sql.DB, error) { return sql.Open("sqlite", dsn) }

func queryMetadata(ctx context.Context, db *sql.DB, table string) ([]Entry, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, title FROM `+table+` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrDataLoad, table, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e     Entry
			title sql.NullString
		)
		if err := rows.Scan(&e.ID, &title); err != nil {
			return nil, fmt.Errorf("%w: scan %s row %d: %v", ErrDataLoad, table, len(entries), err)
		}
		e.Title = title.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrDataLoad, table, err)
	}
	return entries, nil
}

func loadVectors(path string) ([]vector.Sparse, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: vectors: %v", ErrDataLoad, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: vectors: %v", ErrDataLoad, err)
		}
		defer gz.Close()
		r = gz
	}

	return decodeCSR(r)
}

func decodeCSR(r io.Reader) ([]vector.Sparse, int, error) {
	var m csrMatrix
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, 0, fmt.Errorf("%w: decode vectors: %v", ErrDataLoad, err)
	}

	rows, cols := m.Shape[0], m.Shape[1]
	if rows < 0 || cols < 0 {
		return nil, 0, fmt.Errorf("%w: invalid shape %v", ErrDataLoad, m.Shape)
	}
	if len(m.Indptr) != rows+1 {
		return nil, 0, fmt.Errorf("%w: indptr has %d entries for %d rows", ErrDataLoad, len(m.Indptr), rows)
	}
	if len(m.Indices) != len(m.Data) {
		return nil, 0, fmt.Errorf("%w: %d indices for %d values", ErrDataLoad, len(m.Indices), len(m.Data))
	}
	if m.Indptr[0] != 0 || m.Indptr[rows] != int64(len(m.Indices)) {
		return nil, 0, fmt.Errorf("%w: indptr does not span data (%d..%d of %d)", ErrDataLoad, m.Indptr[0], m.Indptr[rows], len(m.Indices))
	}

	out := make([]vector.Sparse, rows)
	for i := 0; i < rows; i++ {
		lo, hi := m.Indptr[i], m.Indptr[i+1]
		if hi < lo || hi > int64(len(m.Indices)) {
			return nil, 0, fmt.Errorf("%w: indptr out of order at row %d", ErrDataLoad, i)
		}
		idx := m.Indices[lo:hi]
		val := m.Data[lo:hi]
		if !sort.SliceIsSorted(idx, func(a, b int) bool { return idx[a] < idx[b] }) {
			idx, val = sortRow(idx, val)
		}
		v, err := vector.NewSparse(idx, val, cols)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: row %d: %v", ErrDataLoad, i, err)
		}
		out[i] = v
	}

	return out, cols, nil
}

// sortRow returns copies of a row's columns and values ordered by column.
func sortRow(idx []int32, val []float32) ([]int32, []float32) {
	perm := make([]int, len(idx))
	for i := range perm {
		perm[i] = i
	}
	sort.Slice(perm, func(a, b int) bool { return idx[perm[a]] < idx[perm[b]] })

	sIdx := make([]int32, len(idx))
	sVal := make([]float32, len(val))
	for i, p := range perm {
		sIdx[i] = idx[p]
		sVal[i] = val[p]
	}
	return sIdx, sVal
}
