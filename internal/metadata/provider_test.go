package metadata

import "testing"

func TestTitleSimilarity(t *testing.T) {
	cases := []struct {
		query, result string
		want          float64
	}{
		{"The Matrix", "The Matrix", 1.0},
		{"Matrix", "Matrix Reloaded", 0.9},
	}
	for _, c := range cases {
		if got := titleSimilarity(c.query, c.result); got != c.want {
			t.Errorf("titleSimilarity(%q, %q) = %v, want %v", c.query, c.result, got, c.want)
		}
	}
}

func TestTitleSimilarityPenalizesExtraWords(t *testing.T) {
	score := titleSimilarity("Cloverfield", "10 Cloverfield Lane")
	if score <= 0 || score >= 1 {
		t.Errorf("expected a partial score in (0,1), got %v", score)
	}
}

func TestTitleSimilarityNoOverlap(t *testing.T) {
	if got := titleSimilarity("Alpha", "Zulu Bravo"); got != 0 {
		t.Errorf("expected 0 overlap score, got %v", got)
	}
}
