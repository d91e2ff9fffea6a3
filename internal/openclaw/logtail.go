package openclaw

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"opengoat/internal/ports"
)

// logLine is one NDJSON record on the OpenClaw log channel.
type logLine struct {
	TS    int64  `json:"ts"`
	Level string `json:"level,omitempty"`
	Msg   string `json:"msg"`
	RunID string `json:"runId,omitempty"`
}

var (
	embeddedRunStartRe = regexp.MustCompile(`embedded run start: runId=([A-Za-z0-9_-]+)`)
	toolStartRe        = regexp.MustCompile(`embedded run tool start: tool=([A-Za-z0-9_.-]+)`)
	toolEndRe          = regexp.MustCompile(`embedded run tool end: tool=([A-Za-z0-9_.-]+) durationMs=(\d+)`)
	runIDNoiseRe       = regexp.MustCompile(`\s*runId=[A-Za-z0-9_-]+\s*`)
)

// Extraction is the outcome of one ExtractActivities pass. The caller
// feeds NextFallbackRunID back on the next poll so an embedded run
// stays bound across polls.
type Extraction struct {
	Activities        []string
	NextFallbackRunID string
}

// ExtractActivities translates raw runtime log lines into readable
// activity strings for the run identified by primaryRunID. Lines older
// than startedAtMs belong to a previous run and are ignored. When the
// runtime spawns an embedded run, its announced id becomes the bound
// fallback and later lines under that id are accepted too.
func ExtractActivities(lines []string, primaryRunID, fallbackRunID string, startedAtMs int64) Extraction {
	out := Extraction{NextFallbackRunID: fallbackRunID}

	for _, raw := range lines {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		var line logLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			continue
		}
		if line.TS != 0 && line.TS < startedAtMs {
			continue
		}

		accepted := line.RunID == primaryRunID ||
			(out.NextFallbackRunID != "" && line.RunID == out.NextFallbackRunID)

		if m := embeddedRunStartRe.FindStringSubmatch(line.Msg); m != nil {
			if accepted || out.NextFallbackRunID == "" {
				if out.NextFallbackRunID == "" {
					out.NextFallbackRunID = m[1]
				}
				out.Activities = append(out.Activities, "Run accepted by OpenClaw.")
			}
			continue
		}
		if !accepted {
			continue
		}

		switch {
		case toolEndRe.MatchString(line.Msg):
			m := toolEndRe.FindStringSubmatch(line.Msg)
			out.Activities = append(out.Activities, fmt.Sprintf("Finished tool: %s (%s ms).", m[1], m[2]))
		case toolStartRe.MatchString(line.Msg):
			m := toolStartRe.FindStringSubmatch(line.Msg)
			out.Activities = append(out.Activities, fmt.Sprintf("Running tool: %s.", m[1]))
		default:
			msg := strings.TrimSpace(runIDNoiseRe.ReplaceAllString(line.Msg, " "))
			if msg != "" {
				out.Activities = append(out.Activities, msg)
			}
		}
	}
	return out
}

// LogTailer reads the newest OpenClaw runtime log incrementally.
type LogTailer struct {
	fs     ports.Filesystem
	dir    string
	file   string
	offset int64
}

// DefaultLogDir is where the runtime writes its logs unless overridden.
func DefaultLogDir() string {
	return filepath.Join(os.TempDir(), "openclaw")
}

// NewLogTailer returns a tailer over dir (DefaultLogDir when empty).
func NewLogTailer(fs ports.Filesystem, dir string) *LogTailer {
	if dir == "" {
		dir = DefaultLogDir()
	}
	return &LogTailer{fs: fs, dir: dir}
}

// Poll returns the log lines appended since the previous poll. The
// newest openclaw-*.log is followed; rotation resets the offset. A
// missing log dir yields no lines, never an error: the runtime simply
// has not logged yet.
func (t *LogTailer) Poll() ([]string, error) {
	newest, err := t.newestLog()
	if err != nil || newest == "" {
		return nil, err
	}
	if newest != t.file {
		t.file = newest
		t.offset = 0
	}

	data, err := t.fs.ReadFile(newest)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read runtime log: %w", err)
	}
	if int64(len(data)) < t.offset {
		// Truncated in place; start over.
		t.offset = 0
	}
	chunk := data[t.offset:]
	t.offset = int64(len(data))

	var lines []string
	for _, line := range strings.Split(string(chunk), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (t *LogTailer) newestLog() (string, error) {
	entries, err := t.fs.ReadDir(t.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read runtime log dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "openclaw-") && strings.HasSuffix(name, ".log") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	// Names carry a sortable timestamp, so the lexicographic max is the
	// newest file.
	sort.Strings(names)
	return filepath.Join(t.dir, names[len(names)-1]), nil
}
