package linking

import "testing"

func TestNormalizeReqID(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"R-12345", "R-12345"},
		{" r12345 ", "R12345"},
		{"#67890", "67890"},
		{"(JR54321)", "JR54321"},
		{"2024-1234", "2024-1234"},
		{"req 98765", "REQ98765"},
		{"hello", ""},
		{"123", ""},
		{"", ""},
	}

	for _, c := range cases {
		if got := NormalizeReqID(c.input); got != c.want {
			t.Fatalf("NormalizeReqID(%q) = %q, want %q", c.input, got, c.want)
		}
	}
}

func TestSplitTitleReqID(t *testing.T) {
	cases := []struct {
		input     string
		wantTitle string
		wantReq   string
	}{
		{"Data Engineer (R-12345)", "Data Engineer", "R-12345"},
		{"Data Engineer - 2024-1234", "Data Engineer", "2024-1234"},
		{"Data Engineer #67890", "Data Engineer", "67890"},
		{"Data Engineer", "Data Engineer", ""},
		{"R-12345", "R-12345", "R-12345"},
		{"", "", ""},
	}

	for _, c := range cases {
		title, req := SplitTitleReqID(c.input)
		if title != c.wantTitle || req != c.wantReq {
			t.Fatalf("SplitTitleReqID(%q) = (%q, %q), want (%q, %q)",
				c.input, title, req, c.wantTitle, c.wantReq)
		}
	}
}
