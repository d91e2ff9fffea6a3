package provider

import "testing"

func TestStripANSI(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "hello world", "hello world"},
		{"color codes", "\x1b[32mdone\x1b[0m", "done"},
		{"cursor movement", "\x1b[2K\x1b[1Gprogress", "progress"},
		{"osc title", "\x1b]0;openclaw\x07output", "output"},
		{"mixed", "\x1b[1mTask\x1b[0m #T-0a1b2c \x1b[90m(todo)\x1b[0m", "Task #T-0a1b2c (todo)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripANSI(tc.in); got != tc.want {
				t.Errorf("StripANSI(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCleanOutput(t *testing.T) {
	in := "\n\n\x1b[32mok\x1b[0m  \nresult line\t\n\n\n"
	want := "ok\nresult line"
	if got := CleanOutput(in); got != want {
		t.Errorf("CleanOutput = %q, want %q", got, want)
	}
}
