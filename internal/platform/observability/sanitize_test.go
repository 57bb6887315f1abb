package observability

import "testing"

func TestSanitizeLogValue(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{name: "plain text untouched", in: "rate limit exceeded", limit: 64, want: "rate limit exceeded"},
		{name: "newlines flattened", in: "line one\nline two\r\n", limit: 64, want: "line one line two"},
		{name: "control characters replaced", in: "bad\x00value", limit: 64, want: "bad value"},
		{name: "length capped", in: "abcdefgh", limit: 4, want: "abcd"},
		{name: "default limit on zero", in: "ok", limit: 0, want: "ok"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeLogValue(tc.in, tc.limit); got != tc.want {
				t.Fatalf("SanitizeLogValue(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
			}
		})
	}
}
