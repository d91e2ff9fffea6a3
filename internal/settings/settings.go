// Package settings owns ui-settings.json: schema, validation, legacy
// migration and the hot-reload watcher.
package settings

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"opengoat/internal/config"
	"opengoat/internal/errs"
	"opengoat/internal/ports"
	"opengoat/pkg/logger"
)

// Notification targets for the bottom-up strategy.
const (
	TargetAllManagers = "all-managers"
	TargetRootOnly    = "root-only"
)

// TopDown configures manager-initiated delegation.
type TopDown struct {
	Enabled            bool `json:"enabled"`
	OpenTasksThreshold int  `json:"openTasksThreshold"`
}

// BottomUp configures inactive-agent escalation.
type BottomUp struct {
	Enabled                         bool   `json:"enabled"`
	MaxInactivityMinutes            int    `json:"maxInactivityMinutes"`
	InactiveAgentNotificationTarget string `json:"inactiveAgentNotificationTarget"`
}

// Strategies groups the delegation strategies.
type Strategies struct {
	TopDown  TopDown  `json:"topDown"`
	BottomUp BottomUp `json:"bottomUp"`
}

// Authentication configures gateway basic auth.
type Authentication struct {
	Enabled      bool   `json:"enabled"`
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
}

// Settings is the persisted shape of ui-settings.json.
type Settings struct {
	TaskCronEnabled          bool           `json:"taskCronEnabled"`
	MaxInProgressMinutes     int            `json:"maxInProgressMinutes"`
	MaxParallelFlows         int            `json:"maxParallelFlows"`
	TaskDelegationStrategies Strategies     `json:"taskDelegationStrategies"`
	Authentication           Authentication `json:"authentication"`
}

// Defaults returns a fresh settings document.
func Defaults() Settings {
	return Settings{
		TaskCronEnabled:      true,
		MaxInProgressMinutes: 240,
		MaxParallelFlows:     3,
		TaskDelegationStrategies: Strategies{
			TopDown: TopDown{Enabled: true, OpenTasksThreshold: 5},
			BottomUp: BottomUp{
				Enabled:                         true,
				MaxInactivityMinutes:            30,
				InactiveAgentNotificationTarget: TargetAllManagers,
			},
		},
	}
}

// Validate checks ranges and enums.
func (s Settings) Validate() error {
	if s.MaxParallelFlows < 1 {
		return errs.Validation("maxParallelFlows must be at least 1, got %d", s.MaxParallelFlows)
	}
	if s.MaxInProgressMinutes < 1 {
		return errs.Validation("maxInProgressMinutes must be at least 1, got %d", s.MaxInProgressMinutes)
	}
	if s.TaskDelegationStrategies.BottomUp.MaxInactivityMinutes < 1 {
		return errs.Validation("maxInactivityMinutes must be at least 1, got %d",
			s.TaskDelegationStrategies.BottomUp.MaxInactivityMinutes)
	}
	switch s.TaskDelegationStrategies.BottomUp.InactiveAgentNotificationTarget {
	case TargetAllManagers, TargetRootOnly:
	default:
		return errs.Validation("inactiveAgentNotificationTarget must be %q or %q",
			TargetAllManagers, TargetRootOnly)
	}
	if s.Authentication.Enabled && s.Authentication.Username == "" {
		return errs.Validation("authentication requires a username")
	}
	return nil
}

// legacyFile is the superset shape used to detect old fields on load.
type legacyFile struct {
	Settings
	NotifyManagersOfInactiveAgents *bool `json:"notifyManagersOfInactiveAgents,omitempty"`
}

// Store loads, caches and persists settings.
type Store struct {
	fs    ports.Filesystem
	paths config.Paths

	mu      sync.RWMutex
	current Settings
}

// NewStore loads settings from disk, migrating legacy fields and
// persisting the migrated document once.
func NewStore(fs ports.Filesystem, paths config.Paths) (*Store, error) {
	s := &Store{fs: fs, paths: paths}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the file; a missing file yields the defaults.
func (s *Store) Reload() error {
	data, err := s.fs.ReadFile(s.paths.SettingsPath())
	if os.IsNotExist(err) {
		s.mu.Lock()
		s.current = Defaults()
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	loaded, migrated, err := migrate(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()

	if migrated {
		if err := s.persist(loaded); err != nil {
			return fmt.Errorf("persist migrated settings: %w", err)
		}
		logger.Info().Msg("migrated legacy settings fields")
	}
	return nil
}

// migrate parses a settings file on top of the defaults and folds
// legacy fields into the current schema.
func migrate(data []byte) (Settings, bool, error) {
	legacy := legacyFile{Settings: Defaults()}
	if err := json.Unmarshal(data, &legacy); err != nil {
		return Settings{}, false, errs.Validation("malformed settings file: %v", err)
	}

	out := legacy.Settings
	migrated := false
	if legacy.NotifyManagersOfInactiveAgents != nil {
		out.TaskDelegationStrategies.BottomUp.Enabled = *legacy.NotifyManagersOfInactiveAgents
		migrated = true
	}
	if out.TaskDelegationStrategies.BottomUp.InactiveAgentNotificationTarget == "" {
		out.TaskDelegationStrategies.BottomUp.InactiveAgentNotificationTarget = TargetAllManagers
		migrated = true
	}

	// An explicit taskCronEnabled=false in an old file stays off.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err == nil {
		if v, ok := raw["taskCronEnabled"]; ok && strings.TrimSpace(string(v)) == "false" {
			out.TaskCronEnabled = false
		}
	}

	if err := out.Validate(); err != nil {
		return Settings{}, false, err
	}
	return out, migrated, nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update validates and persists new settings.
func (s *Store) Update(next Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return nil
}

// SetPassword enables authentication with a SHA-256 password hash.
func (s *Store) SetPassword(username, plaintext string) error {
	if strings.TrimSpace(username) == "" {
		return errs.Validation("username is required")
	}
	if plaintext == "" {
		return errs.Validation("password must not be empty")
	}
	next := s.Get()
	next.Authentication = Authentication{
		Enabled:      true,
		Username:     username,
		PasswordHash: HashPassword(plaintext),
	}
	return s.Update(next)
}

// Verify checks basic-auth credentials against the stored hash.
func (s *Store) Verify(username, plaintext string) bool {
	auth := s.Get().Authentication
	if !auth.Enabled {
		return true
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(auth.Username)) == 1
	hashOK := subtle.ConstantTimeCompare(
		[]byte(HashPassword(plaintext)), []byte(auth.PasswordHash)) == 1
	return userOK && hashOK
}

// HashPassword returns the hex SHA-256 of a plaintext password.
func HashPassword(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func (s *Store) persist(v Settings) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return s.fs.WriteFileAtomic(s.paths.SettingsPath(), append(data, '\n'), 0o600)
}
