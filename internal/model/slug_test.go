package model

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"The Weeknd", "the-weeknd"},
		{" Dua   Lipa ", "dua-lipa"},
		{"Beyoncé", "beyonce"},
		{"Sigur Rós", "sigur-ros"},
		{"AC/DC", "ac-dc"},
		{"Guns N' Roses", "guns-n-roses"},
		{"blink-182", "blink-182"},
		{"BTS 방탄소년단", "bts-방탄소년단"},
		{"Кино", "кино"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlugify_Idempotent(t *testing.T) {
	for _, in := range []string{"The Weeknd", "Beyoncé", "  Mötley   Crüe!! ", "Tyler, The Creator"} {
		once := Slugify(in)
		if twice := Slugify(once); twice != once {
			t.Errorf("Slugify(Slugify(%q)) = %q, want %q", in, twice, once)
		}
	}
}

func TestFallbackSlug(t *testing.T) {
	if got := FallbackSlug("0Ai5eY7HT7CVWQBmRzFpET"); got != "artist-0ai5ey7ht7cvwqbmrzfpet" {
		t.Errorf("FallbackSlug() = %q", got)
	}
	if got := FallbackSlug(""); got != "" {
		t.Errorf("FallbackSlug(\"\") = %q, want empty", got)
	}
}
