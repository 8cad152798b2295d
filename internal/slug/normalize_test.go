package slug

import "testing"

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{"rocky-ii-1985", "Rocky II"},
		{"the-matrix-1999", "The Matrix"},
		{"se7en", "Se7En"},
		{"rocky-1976", "Rocky"},
		{"the-godfather-part-iii", "The Godfather Part III"},
		{"blade-runner-2049", "Blade Runner"},
		{"blade-runner-2049-2017", "Blade Runner 2049"},
		{"1917", "1917"},
		{"route-12345", "Route 12345"},
		{"amélie", "Amélie"},
		{"WALL-E", "Wall E"},
		{"  heat  ", "Heat"},
		{"x", "X"},
		{"vi", "Vi"},
		{"", ""},
		// Any trailing word spelled with I, V and X is treated as a numeral.
		{"my-friend-vivi", "My Friend VIVI"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.raw); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"rocky-ii-1985", "se7en", "the-matrix-1999"} {
		first := Normalize(raw)
		if again := Normalize(raw); again != first {
			t.Errorf("Normalize(%q) changed between calls: %q then %q", raw, first, again)
		}
	}
}
