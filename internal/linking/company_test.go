package linking

import "testing"

func TestNormalizeCompany(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"Zoom", "zoom"},
		{"Zoom Communications", "zoom"},
		{"Zoom Communications, Inc.", "zoom"},
		{"Your Zoom", "zoom"},
		{"Stripe, Inc", "stripe"},
		{"Acme Technologies LLC", "acme"},
		{"Snowflake Computing", "snowflake computing"},
		{"Amazon Web Services", "amazon web services"},
		{"  Spaced   Out  Corp ", "spaced out"},
		{"", ""},
		{"   ", ""},
	}

	for _, c := range cases {
		if got := NormalizeCompany(c.input); got != c.want {
			t.Fatalf("NormalizeCompany(%q) = %q, want %q", c.input, got, c.want)
		}
	}
}

func TestNormalizeCompanyStripsOneSuffixOfEachKind(t *testing.T) {
	// One legal suffix and one descriptor may go, but never more.
	if got := NormalizeCompany("Foo Systems Solutions, Inc."); got != "foo systems" {
		t.Fatalf("got %q, want %q", got, "foo systems")
	}
}
