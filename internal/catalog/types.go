package catalog

import "errors"

var (
	// ErrDataLoad marks a missing, malformed or inconsistent store artifact.
	// The process must not serve requests after it.
	ErrDataLoad = errors.New("catalog: data load failed")

	// ErrNotFound is returned when an id or title is not in the catalog.
	ErrNotFound = errors.New("movie not found")
)

// Entry is one catalog row. Row is the position in the feature matrix.
type Entry struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Row   int    `json:"row"`
}

// Sources names the two artifacts a Store is loaded from.
type Sources struct {
	// MetadataPath is a CSV file with id and title columns, or a SQLite
	// database (.db, .sqlite, .sqlite3).
	MetadataPath string

	// VectorsPath is a CSR sparse matrix encoded as JSON, optionally gzipped.
	VectorsPath string

	// Table is the SQLite table holding metadata. Defaults to "movies".
	Table string
}
