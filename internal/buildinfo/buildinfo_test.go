package buildinfo

import "testing"

func restore(v, c, d string) { Version, Commit, Date = v, c, d }

func TestShort(t *testing.T) {
	defer restore(Version, Commit, Date)

	tests := []struct {
		version, commit, want string
	}{
		{"dev", "", "dev"},
		{"dev", "0123456789abcdef", "dev-0123456"},
		{"v1.2.0", "0123456789abcdef", "v1.2.0"},
		{"", "abc", "dev-abc"},
	}
	for _, tt := range tests {
		Version, Commit = tt.version, tt.commit
		if got := Short(); got != tt.want {
			t.Fatalf("Short() with %q/%q = %q, want %q", tt.version, tt.commit, got, tt.want)
		}
	}
}

func TestString(t *testing.T) {
	defer restore(Version, Commit, Date)

	tests := []struct {
		version, commit, date, want string
	}{
		{"v1.0.0", "0123456789", "2026-10-18", "v1.0.0 0123456 built 2026-10-18"},
		{"dev", "0123456789", "", "dev-0123456"},
		{"dev", "", "", "dev"},
	}
	for _, tt := range tests {
		Version, Commit, Date = tt.version, tt.commit, tt.date
		if got := String(); got != tt.want {
			t.Fatalf("String() = %q, want %q", got, tt.want)
		}
	}
}
