package service

import (
	"encoding/json"
	"fmt"
	"os"

	"opengoat/internal/errs"
	"opengoat/internal/settings"
)

// GetSettings returns the current settings snapshot.
func (s *Service) GetSettings() settings.Settings {
	return s.settings.Get()
}

// UpdateSettings validates and persists the full settings document.
// Subscribers (the task-cron toggle among them) are notified.
func (s *Service) UpdateSettings(next settings.Settings) error {
	return s.settings.Update(next)
}

// SetAuthPassword enables gateway authentication with the given
// credentials.
func (s *Service) SetAuthPassword(username, plaintext string) error {
	return s.settings.SetPassword(username, plaintext)
}

// VerifyAuth checks credentials against the stored hash. With
// authentication disabled every caller passes.
func (s *Service) VerifyAuth(username, plaintext string) bool {
	return s.settings.Verify(username, plaintext)
}

// GetOpenClawGatewayConfig returns the raw gateway config document, or
// an empty object when none was written yet.
func (s *Service) GetOpenClawGatewayConfig() (json.RawMessage, error) {
	data, err := s.fs.ReadFile(s.paths.GatewayConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return json.RawMessage("{}"), nil
		}
		return nil, fmt.Errorf("read gateway config: %w", err)
	}
	return json.RawMessage(data), nil
}

// SetOpenClawGatewayConfig replaces the gateway config document. The
// payload must be a JSON object; its keys are passed through to the
// runtime untouched.
func (s *Service) SetOpenClawGatewayConfig(doc json.RawMessage) error {
	var probe map[string]any
	if err := json.Unmarshal(doc, &probe); err != nil {
		return errs.Validation("gateway config must be a JSON object: %v", err)
	}
	pretty, err := json.MarshalIndent(probe, "", "  ")
	if err != nil {
		return err
	}
	pretty = append(pretty, '\n')
	return s.fs.WriteFileAtomic(s.paths.GatewayConfigPath(), pretty, 0o644)
}
