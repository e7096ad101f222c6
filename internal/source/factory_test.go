package source

import "testing"

func TestSplitShare(t *testing.T) {
	cases := []struct {
		in         string
		wantShare  string
		wantRest   string
	}{
		{"Movies", "Movies", ""},
		{"Movies/4K", "Movies", "4K"},
		{"/Movies/4K/Action", "Movies", "4K/Action"},
		{"", "", ""},
	}
	for _, c := range cases {
		share, rest := splitShare(c.in)
		if share != c.wantShare || rest != c.wantRest {
			t.Errorf("splitShare(%q) = (%q, %q), want (%q, %q)", c.in, share, rest, c.wantShare, c.wantRest)
		}
	}
}
