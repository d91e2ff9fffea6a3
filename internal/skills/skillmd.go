// Package skills manages the SKILL.md library: the global collection
// under <home>/skills and the per-agent copies inside workspaces.
package skills

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"opengoat/internal/errs"
)

// frontmatterRegex matches YAML frontmatter at the top of SKILL.md.
var frontmatterRegex = regexp.MustCompile(`(?s)^---\s*\n(.+?)\n---\s*\n?`)

// skillIDPattern is the allowed shape of a skill id (and directory name).
var skillIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// Skill is one parsed SKILL.md.
type Skill struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Path        string        `json:"path,omitempty"`
	Body        string        `json:"-"`
	Metadata    *OpenClawMeta `json:"metadata,omitempty"`
}

// frontmatter is the YAML header of a SKILL.md file.
type frontmatter struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Metadata    *metadataNode `yaml:"metadata,omitempty"`
}

type metadataNode struct {
	OpenClaw *OpenClawMeta `yaml:"openclaw,omitempty"`
}

// OpenClawMeta is the OpenClaw-specific block under metadata.openclaw.
type OpenClawMeta struct {
	Emoji    string            `yaml:"emoji,omitempty" json:"emoji,omitempty"`
	Requires *OpenClawRequires `yaml:"requires,omitempty" json:"requires,omitempty"`
}

// OpenClawRequires lists runtime requirements the skill declares.
type OpenClawRequires struct {
	Config []string `yaml:"config,omitempty" json:"config,omitempty"`
}

// ValidateID checks a skill id against the slug rules.
func ValidateID(id string) error {
	if !skillIDPattern.MatchString(id) {
		return errs.Validation("invalid skill id %q: must match %s", id, skillIDPattern.String())
	}
	return nil
}

// ParseSkillMD parses SKILL.md content. A missing or nameless
// frontmatter falls back to the id, so hand-dropped files still list.
func ParseSkillMD(id, path string, content []byte) (Skill, error) {
	skill := Skill{ID: id, Name: id, Path: path}

	text := string(content)
	matches := frontmatterRegex.FindStringSubmatch(text)
	if len(matches) < 2 {
		skill.Body = strings.TrimSpace(text)
		return skill, nil
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(matches[1]), &fm); err != nil {
		return Skill{}, errs.Validation("skill %s: malformed frontmatter: %w", id, err)
	}
	if fm.Name != "" {
		skill.Name = fm.Name
	}
	skill.Description = fm.Description
	if fm.Metadata != nil {
		skill.Metadata = fm.Metadata.OpenClaw
	}

	loc := frontmatterRegex.FindStringIndex(text)
	skill.Body = strings.TrimSpace(text[loc[1]:])
	return skill, nil
}

// RenderSkillMD emits a SKILL.md document for the skill.
func RenderSkillMD(s Skill) ([]byte, error) {
	fm := frontmatter{
		Name:        s.Name,
		Description: s.Description,
	}
	if s.Metadata != nil {
		fm.Metadata = &metadataNode{OpenClaw: s.Metadata}
	}

	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter for %s: %w", s.ID, err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimSpace(s.Body))
	b.WriteString("\n")
	return []byte(b.String()), nil
}
