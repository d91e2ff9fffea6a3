// Package sessions owns the durable conversations under
// <home>/sessions: one directory per (agent, slug) with a meta.json and
// a JSON-lines transcript.
package sessions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"opengoat/internal/config"
	"opengoat/internal/errs"
	"opengoat/internal/locks"
	"opengoat/internal/ports"
	"opengoat/pkg/logger"
)

// Scope prefixes a session key.
const (
	ScopeAgent     = "agent"
	ScopeWorkspace = "workspace"
	ScopeProject   = "project"
)

// DefaultSlug is the session used when a run names none.
const DefaultSlug = "main"

const (
	metaFileName       = "meta.json"
	transcriptFileName = "transcript.jsonl"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,127}$`)

// Meta is the persisted shape of meta.json.
type Meta struct {
	Key             string `json:"key"`
	AgentID         string `json:"agentId"`
	SessionID       string `json:"sessionId"`
	Title           string `json:"title,omitempty"`
	CreatedAt       int64  `json:"createdAt"`
	UpdatedAt       int64  `json:"updatedAt"`
	InputChars      int    `json:"inputChars"`
	OutputChars     int    `json:"outputChars"`
	TotalChars      int    `json:"totalChars"`
	CompactionCount int    `json:"compactionCount"`
}

// Transcript entry types. Untagged lines count as messages.
const (
	EntryTypeMessage    = "message"
	EntryTypeCompaction = "compaction"
)

// Entry is one transcript line.
type Entry struct {
	At   int64  `json:"at"`
	Type string `json:"type,omitempty"`
	Role string `json:"role,omitempty"`
	Text string `json:"text"`
}

// ParseKey splits "<scope>:<slug>" and validates both halves. A bare
// slug gets the agent scope.
func ParseKey(key string) (scope, slug string, err error) {
	scope = ScopeAgent
	slug = key
	if i := strings.Index(key, ":"); i >= 0 {
		scope = key[:i]
		slug = key[i+1:]
	}
	switch scope {
	case ScopeAgent, ScopeWorkspace, ScopeProject:
	default:
		return "", "", errs.Validation("unknown session scope %q in key %q", scope, key)
	}
	if !slugPattern.MatchString(slug) {
		return "", "", errs.Validation("invalid session slug %q: must match %s", slug, slugPattern.String())
	}
	return scope, slug, nil
}

// Store reads and mutates sessions on disk.
type Store struct {
	fs    ports.Filesystem
	clock ports.Clock
	paths config.Paths

	locks locks.KeyedMutex
}

// NewStore returns a session store over the given home layout.
func NewStore(fs ports.Filesystem, clock ports.Clock, paths config.Paths) *Store {
	return &Store{fs: fs, clock: clock, paths: paths}
}

// List returns the sessions of one agent, most recently updated first.
// An empty agentID lists every agent's sessions.
func (s *Store) List(agentID string) ([]Meta, error) {
	var agentIDs []string
	if agentID != "" {
		agentIDs = []string{agentID}
	} else {
		entries, err := s.fs.ReadDir(s.paths.SessionsDir())
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("read sessions dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				agentIDs = append(agentIDs, e.Name())
			}
		}
	}

	var out []Meta
	for _, id := range agentIDs {
		entries, err := s.fs.ReadDir(s.paths.AgentSessionsDir(id))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read sessions of %s: %w", id, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			meta, err := s.loadMeta(id, e.Name())
			if err != nil {
				logger.Warn().Str("agent", id).Str("session", e.Name()).Err(err).
					Msg("skipping unreadable session meta")
				continue
			}
			out = append(out, meta)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// Get returns one session's metadata.
func (s *Store) Get(agentID, key string) (Meta, error) {
	_, slug, err := ParseKey(key)
	if err != nil {
		return Meta{}, err
	}
	meta, err := s.loadMeta(agentID, slug)
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, errs.NotFound("session %q of agent %q does not exist", key, agentID)
		}
		return Meta{}, err
	}
	return meta, nil
}

// Prepare ensures the session exists and returns it. With forceNew, a
// fresh provider session id replaces the old one and the transcript is
// kept.
func (s *Store) Prepare(agentID, key string, forceNew bool) (Meta, bool, error) {
	_, slug, err := ParseKey(key)
	if err != nil {
		return Meta{}, false, err
	}

	defer s.locks.Lock(agentID + "/" + slug)()

	meta, err := s.loadMeta(agentID, slug)
	if err == nil {
		if forceNew {
			meta.SessionID = uuid.NewString()
			meta.UpdatedAt = s.clock.Now().UnixMilli()
			if err := s.saveMeta(meta); err != nil {
				return Meta{}, false, err
			}
		}
		return meta, false, nil
	}
	if !os.IsNotExist(err) {
		return Meta{}, false, err
	}

	now := s.clock.Now().UnixMilli()
	meta = Meta{
		Key:       normalizeKey(key),
		AgentID:   agentID,
		SessionID: uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.fs.MkdirAll(s.paths.SessionDir(agentID, slug), 0o755); err != nil {
		return Meta{}, false, fmt.Errorf("create session dir: %w", err)
	}
	if err := s.saveMeta(meta); err != nil {
		return Meta{}, false, err
	}
	logger.Debug().Str("agent", agentID).Str("session", meta.Key).Msg("session created")
	return meta, true, nil
}

// Append writes transcript entries and bumps the session counters.
// UpdatedAt is monotonic: a stale clock never moves it backwards.
func (s *Store) Append(agentID, key string, entries ...Entry) (Meta, error) {
	_, slug, err := ParseKey(key)
	if err != nil {
		return Meta{}, err
	}

	defer s.locks.Lock(agentID + "/" + slug)()

	meta, err := s.loadMeta(agentID, slug)
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, errs.NotFound("session %q of agent %q does not exist", key, agentID)
		}
		return Meta{}, err
	}

	var buf strings.Builder
	for i := range entries {
		e := &entries[i]
		if e.Type == "" {
			e.Type = EntryTypeMessage
		}
		line, err := json.Marshal(e)
		if err != nil {
			return Meta{}, fmt.Errorf("marshal transcript entry: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
		meta.TotalChars += len(e.Text)
		if e.Type == EntryTypeCompaction {
			meta.CompactionCount++
			continue
		}
		switch e.Role {
		case "user":
			meta.InputChars += len(e.Text)
		case "assistant":
			meta.OutputChars += len(e.Text)
		}
	}
	path := filepath.Join(s.paths.SessionDir(agentID, slug), transcriptFileName)
	if err := s.fs.AppendFile(path, []byte(buf.String()), 0o644); err != nil {
		return Meta{}, fmt.Errorf("append transcript: %w", err)
	}

	if now := s.clock.Now().UnixMilli(); now > meta.UpdatedAt {
		meta.UpdatedAt = now
	}
	if err := s.saveMeta(meta); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

// History returns the last limit transcript entries (all when limit<=0).
// Compaction entries are filtered out unless includeCompaction is set.
// Malformed lines are skipped, not fatal.
func (s *Store) History(agentID, key string, limit int, includeCompaction bool) ([]Entry, error) {
	_, slug, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadMeta(agentID, slug); err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NotFound("session %q of agent %q does not exist", key, agentID)
		}
		return nil, err
	}

	data, err := s.fs.ReadFile(filepath.Join(s.paths.SessionDir(agentID, slug), transcriptFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var out []Entry
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			logger.Warn().Str("agent", agentID).Str("session", key).Msg("skipping malformed transcript line")
			continue
		}
		if e.Type == EntryTypeCompaction && !includeCompaction {
			continue
		}
		out = append(out, e)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// SetSessionID records the provider-assigned session id.
func (s *Store) SetSessionID(agentID, key, sessionID string) error {
	_, slug, err := ParseKey(key)
	if err != nil {
		return err
	}

	defer s.locks.Lock(agentID + "/" + slug)()

	meta, err := s.loadMeta(agentID, slug)
	if err != nil {
		return err
	}
	if meta.SessionID == sessionID {
		return nil
	}
	meta.SessionID = sessionID
	return s.saveMeta(meta)
}

// Rename sets the display title.
func (s *Store) Rename(agentID, key, title string) (Meta, error) {
	_, slug, err := ParseKey(key)
	if err != nil {
		return Meta{}, err
	}

	defer s.locks.Lock(agentID + "/" + slug)()

	meta, err := s.loadMeta(agentID, slug)
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, errs.NotFound("session %q of agent %q does not exist", key, agentID)
		}
		return Meta{}, err
	}
	meta.Title = title
	if now := s.clock.Now().UnixMilli(); now > meta.UpdatedAt {
		meta.UpdatedAt = now
	}
	if err := s.saveMeta(meta); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

// Remove deletes the session directory.
func (s *Store) Remove(agentID, key string) error {
	_, slug, err := ParseKey(key)
	if err != nil {
		return err
	}

	defer s.locks.Lock(agentID + "/" + slug)()

	dir := s.paths.SessionDir(agentID, slug)
	if _, err := s.fs.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return errs.NotFound("session %q of agent %q does not exist", key, agentID)
		}
		return err
	}
	return s.fs.RemoveAll(dir)
}

// RemoveAgent drops every session of an agent. Missing is fine.
func (s *Store) RemoveAgent(agentID string) error {
	return s.fs.RemoveAll(s.paths.AgentSessionsDir(agentID))
}

// LastActivity returns the newest UpdatedAt across the agent's
// sessions, or zero when the agent has none.
func (s *Store) LastActivity(agentID string) (int64, error) {
	metas, err := s.List(agentID)
	if err != nil {
		return 0, err
	}
	var last int64
	for _, m := range metas {
		if m.UpdatedAt > last {
			last = m.UpdatedAt
		}
	}
	return last, nil
}

func normalizeKey(key string) string {
	if strings.Contains(key, ":") {
		return key
	}
	return ScopeAgent + ":" + key
}

func (s *Store) loadMeta(agentID, slug string) (Meta, error) {
	data, err := s.fs.ReadFile(filepath.Join(s.paths.SessionDir(agentID, slug), metaFileName))
	if err != nil {
		return Meta{}, err
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("parse session meta %s/%s: %w", agentID, slug, err)
	}
	return meta, nil
}

func (s *Store) saveMeta(meta Meta) error {
	_, slug, err := ParseKey(meta.Key)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.paths.SessionDir(meta.AgentID, slug), metaFileName)
	return s.fs.WriteFileAtomic(path, append(data, '\n'), 0o644)
}
