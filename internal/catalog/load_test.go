package catalog

import (
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testMatrix = `{
  "shape": [3, 4],
  "indptr": [0, 2, 3, 5],
  "indices": [0, 2, 1, 3, 0],
  "data": [0.5, 0.5, 1.0, 0.25, 0.75]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	meta := writeFile(t, dir, "movies.csv", "title,id,year\nHeat,949,1995\n\"Crouching Tiger, Hidden Dragon\",146,2000\nRocky II,1367,1979\n")
	vecs := writeFile(t, dir, "tfidf.json", testMatrix)

	s, err := Load(context.Background(), Sources{MetadataPath: meta, VectorsPath: vecs})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.RowCount() != 3 || s.Dim() != 4 {
		t.Fatalf("RowCount/Dim = %d/%d, want 3/4", s.RowCount(), s.Dim())
	}
	if e := s.EntryAt(1); e.ID != 146 || e.Title != "Crouching Tiger, Hidden Dragon" {
		t.Errorf("EntryAt(1) = %+v", e)
	}

	// Row 2 was stored with unsorted columns [3, 0].
	v := s.VectorAt(2)
	if len(v.Indices) != 2 || v.Indices[0] != 0 || v.Indices[1] != 3 || v.Values[0] != 0.75 {
		t.Errorf("VectorAt(2) = %+v, want columns sorted with values carried", v)
	}
}

func TestLoadGzipVectors(t *testing.T) {
	dir := t.TempDir()
	meta := writeFile(t, dir, "movies.csv", "id,title\n1,A\n2,B\n3,C\n")

	path := filepath.Join(dir, "tfidf.json.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(testMatrix)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	s, err := Load(context.Background(), Sources{MetadataPath: meta, VectorsPath: path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.RowCount() != 3 {
		t.Fatalf("RowCount = %d, want 3", s.RowCount())
	}
}

func TestLoadSQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalog.db")

	db, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	stmts := []string{
		`CREATE TABLE films (id INTEGER NOT NULL, title TEXT)`,
		`INSERT INTO films(id, title) VALUES (10, 'Alien'), (20, 'Aliens'), (30, 'Alien 3')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	vecs := writeFile(t, dir, "tfidf.json", testMatrix)
	s, err := Load(context.Background(), Sources{MetadataPath: dbPath, VectorsPath: vecs, Table: "films"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	row, err := s.LookupByTitle("Aliens")
	if err != nil || row != 1 {
		t.Fatalf("LookupByTitle(Aliens) = %d, %v; want 1, nil", row, err)
	}
}

func TestLoadSQLiteRejectsBadTable(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalog.sqlite")
	db, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE movies (id INTEGER, title TEXT)`); err != nil {
		t.Fatal(err)
	}
	db.Close()
	vecs := writeFile(t, dir, "tfidf.json", testMatrix)

	for _, table := range []string{"movies; DROP TABLE movies", "missing"} {
		_, err := Load(context.Background(), Sources{MetadataPath: dbPath, VectorsPath: vecs, Table: table})
		if !errors.Is(err, ErrDataLoad) {
			t.Errorf("table %q: err = %v, want ErrDataLoad", table, err)
		}
	}
}

func TestLoadFailures(t *testing.T) {
	dir := t.TempDir()
	goodMeta := writeFile(t, dir, "good.csv", "id,title\n1,A\n2,B\n3,C\n")
	goodVecs := writeFile(t, dir, "good.json", testMatrix)

	tests := []struct {
		name    string
		meta    string
		vecs    string
		wantMsg string
	}{
		{"missing metadata", filepath.Join(dir, "nope.csv"), goodVecs, "metadata"},
		{"missing vectors", goodMeta, filepath.Join(dir, "nope.json"), "vectors"},
		{"empty metadata", writeFile(t, dir, "empty.csv", ""), goodVecs, "empty"},
		{"no title column", writeFile(t, dir, "notitle.csv", "id,name\n1,A\n"), goodVecs, "title"},
		{"bad id", writeFile(t, dir, "badid.csv", "id,title\nx,A\n"), goodVecs, "invalid id"},
		{"row count mismatch", writeFile(t, dir, "short.csv", "id,title\n1,A\n2,B\n"), goodVecs, "2 metadata rows but 3 vector rows"},
		{"malformed json", goodMeta, writeFile(t, dir, "bad.json", "{not json"), "decode"},
		{"short indptr", goodMeta, writeFile(t, dir, "indptr.json", `{"shape":[3,4],"indptr":[0,1],"indices":[0],"data":[1]}`), "indptr"},
		{"indptr past data", goodMeta, writeFile(t, dir, "past.json", `{"shape":[3,4],"indptr":[0,5,1,1],"indices":[0],"data":[1]}`), "indptr"},
		{"column out of range", goodMeta, writeFile(t, dir, "col.json", `{"shape":[3,2],"indptr":[0,1,1,1],"indices":[7],"data":[1]}`), "row 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), Sources{MetadataPath: tt.meta, VectorsPath: tt.vecs})
			if !errors.Is(err, ErrDataLoad) {
				t.Fatalf("err = %v, want ErrDataLoad", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("err = %q, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}
