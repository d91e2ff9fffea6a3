package provider

import (
	"regexp"
	"strings"
)

// ansiPattern matches CSI sequences and OSC sequences (terminated by
// BEL or ST), the two escape families agent CLIs actually emit.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(\x07|\x1b\\)`)

// StripANSI removes terminal escape sequences from s.
func StripANSI(s string) string {
	if !strings.ContainsRune(s, '\x1b') {
		return s
	}
	return ansiPattern.ReplaceAllString(s, "")
}

// CleanOutput normalizes captured CLI output for transcripts: escapes
// stripped, per-line trailing whitespace removed, and blank padding at
// both ends dropped.
func CleanOutput(s string) string {
	s = StripANSI(s)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	start := 0
	end := len(lines)
	for start < end && lines[start] == "" {
		start++
	}
	for end > start && lines[end-1] == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
