package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// inTempDir runs the test from an empty directory so no config.yaml or
// .env from the repository is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(ConfigPathEnvVar, "")
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if cfg.Recommend.DefaultK != 10 || cfg.Recommend.DefaultPerTitleK != 5 {
		t.Errorf("Recommend defaults = %+v", cfg.Recommend)
	}
	if cfg.Recommend.DedupeAcrossSeeds {
		t.Error("DedupeAcrossSeeds should default to false")
	}
	if cfg.Letterboxd.Timeout != 10*time.Second {
		t.Errorf("Letterboxd.Timeout = %v, want 10s", cfg.Letterboxd.Timeout)
	}
	if cfg.Server.Addr() != "0.0.0.0:8990" {
		t.Errorf("Addr = %q", cfg.Server.Addr())
	}
}

func TestLoadWithoutFile(t *testing.T) {
	inTempDir(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Letterboxd.BaseURL != "https://letterboxd.com" {
		t.Errorf("BaseURL = %q", cfg.Letterboxd.BaseURL)
	}
	if cfg.Data.Table != "movies" {
		t.Errorf("Table = %q", cfg.Data.Table)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := inTempDir(t)
	yaml := `
server:
  port: 9000
  request_timeout: 5s
data:
  metadata_path: /srv/movies.db
  table: films
recommend:
  dedupe_across_seeds: true
  max_k: 50
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "9100")
	t.Setenv("CORS_ORIGINS", "https://a.test, https://b.test")
	t.Setenv("LETTERBOXD_TIMEOUT", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want env value 9100", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want file value 5s", cfg.Server.RequestTimeout)
	}
	if cfg.Data.MetadataPath != "/srv/movies.db" || cfg.Data.Table != "films" {
		t.Errorf("Data = %+v", cfg.Data)
	}
	if !cfg.Recommend.DedupeAcrossSeeds || cfg.Recommend.MaxK != 50 {
		t.Errorf("Recommend = %+v", cfg.Recommend)
	}
	if cfg.Letterboxd.Timeout != 3*time.Second {
		t.Errorf("Letterboxd.Timeout = %v, want 3s", cfg.Letterboxd.Timeout)
	}
	if want := []string{"https://a.test", "https://b.test"}; !reflect.DeepEqual(cfg.Server.CORSOrigins, want) {
		t.Errorf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
}

func TestLoadConfigPathEnv(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "custom.yml")
	if err := os.WriteFile(path, []byte("letterboxd:\n  max_pages: 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Letterboxd.MaxPages != 4 {
		t.Errorf("MaxPages = %d, want 4", cfg.Letterboxd.MaxPages)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := inTempDir(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("RECOMMENDATIONS_PER_FILM=7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("RECOMMENDATIONS_PER_FILM") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Recommend.DefaultPerTitleK != 7 {
		t.Errorf("DefaultPerTitleK = %d, want 7 from .env", cfg.Recommend.DefaultPerTitleK)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{"default above max", map[string]string{"MAX_RECOMMENDATIONS": "5"}, "DefaultK"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "Format"},
		{"bad port", map[string]string{"PORT": "70000"}, "Port"},
		{"bad base url", map[string]string{"LETTERBOXD_BASE_URL": "not a url"}, "BaseURL"},
		{"zero pages", map[string]string{"LETTERBOXD_MAX_PAGES": "0"}, "MaxPages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempDir(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("Load succeeded, want validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("err = %q, want it to mention %s", err, tt.wantMsg)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"PORT":                "server.port",
		"METADATA_TABLE":      "data.table",
		"DEDUPE_ACROSS_SEEDS": "recommend.dedupe_across_seeds",
		"LOG_LEVEL":           "logging.level",
		"HOME":                "",
		"PATH":                "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}
