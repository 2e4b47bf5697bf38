package match

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Abbey Road", "abbey road"},
		{"  Abbey   Road  ", "abbey road"},
		{"Abbey Road (2019 Remaster)", "abbey road 2019 remaster"},
		{"AC/DC", "acdc"},
		{"Rock & Roll!", "rock roll"},
		{"", ""},
		{"...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeArtistSortName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Beatles, The", "the beatles"},
		{"The Beatles", "the beatles"},
		{"Rolling Stones, The", "the rolling stones"},
		{"Madonna", "madonna"},
	}

	for _, tt := range tests {
		if got := NormalizeArtist(tt.input); got != tt.expected {
			t.Errorf("NormalizeArtist(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"abbey road", "abbey road", 0},
		{"abbey road", "abbey roads", 1},
	}

	for _, tt := range tests {
		if got := Levenshtein(tt.a, tt.b); got != tt.expected {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.expected)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if sim := Similarity("abbey road", "abbey road"); sim != 1.0 {
		t.Errorf("identical strings should have similarity 1.0, got %f", sim)
	}

	// 1 edit over 11 runes
	if sim := Similarity("abbey road", "abbey roads"); sim <= 0.8 {
		t.Errorf("near-identical strings should score > 0.8, got %f", sim)
	}

	if sim := Similarity("abbey road", "zzzzzzzzzz"); sim > 0.2 {
		t.Errorf("unrelated strings should score near 0, got %f", sim)
	}
}

func TestScoreAcceptsRemasterEdition(t *testing.T) {
	// Title is a substring after normalization, artist exact after the
	// sort-name swap
	score := Score("Abbey Road", "The Beatles", "Abbey Road (2019 Remaster)", "Beatles, The")
	if !Accepted(score) {
		t.Errorf("expected remaster candidate to be accepted, score = %d", score)
	}
	if score < 15+20 {
		t.Errorf("expected substring title (15) + exact artist (20), got %d", score)
	}
}

func TestScoreRejectsUnrelatedCandidate(t *testing.T) {
	score := Score("Abbey Road", "The Beatles", "Thriller", "Michael Jackson")
	if Accepted(score) {
		t.Errorf("expected unrelated candidate to be rejected, score = %d", score)
	}
}

func TestScoreExactMatch(t *testing.T) {
	score := Score("Abbey Road", "The Beatles", "Abbey Road", "The Beatles")
	if score != 40 {
		t.Errorf("expected 20 + 20 for exact matches, got %d", score)
	}
}

func TestScoreTitleOnlyWeakTier(t *testing.T) {
	// "abbey road" vs "abbey rd": distance 2 over 10 runes, similarity
	// exactly 0.8, so only the weaker title tier applies
	score := fieldScore("abbey road", "abbey rd", true)
	if score != 8 {
		t.Errorf("expected weak title tier score 8, got %d", score)
	}

	artistScore := fieldScore("abbey road", "abbey rd", false)
	if artistScore != 0 {
		t.Errorf("weak artist similarity should score 0, got %d", artistScore)
	}
}
