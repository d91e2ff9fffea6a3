package skills

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"opengoat/internal/config"
	"opengoat/internal/errs"
	"opengoat/internal/ports"
	"opengoat/internal/provider"
	"opengoat/pkg/logger"
)

// SkillFileName is the manifest file every skill directory carries.
const SkillFileName = "SKILL.md"

// InlineSkill provides skill content without a source directory.
type InlineSkill struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Body        string `json:"body"`
}

// Source names where a skill comes from: a directory or SKILL.md file,
// a fetchable URL, or inline content. Exactly one field is set.
type Source struct {
	Path   string       `json:"path,omitempty"`
	URL    string       `json:"url,omitempty"`
	Inline *InlineSkill `json:"inline,omitempty"`
}

// maxSkillFetchBytes bounds a URL-sourced manifest.
const maxSkillFetchBytes = 1 << 20

// Service owns the global skill library and the copies placed into
// workspace skill directories.
type Service struct {
	fs    ports.Filesystem
	paths config.Paths
	http  *http.Client
}

// NewService returns a skill service over the given home layout.
func NewService(fs ports.Filesystem, paths config.Paths) *Service {
	return &Service{
		fs:    fs,
		paths: paths,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

// ListGlobal returns the skills in <home>/skills sorted by id.
func (s *Service) ListGlobal() ([]Skill, error) {
	return s.listDir(s.paths.SkillsDir())
}

// InstallGlobal adds a skill to the global library.
func (s *Service) InstallGlobal(src Source) (Skill, error) {
	skill, files, err := s.resolve(src)
	if err != nil {
		return Skill{}, err
	}
	if err := s.place(s.paths.SkillDir(skill.ID), files); err != nil {
		return Skill{}, err
	}
	skill.Path = filepath.Join(s.paths.SkillDir(skill.ID), SkillFileName)
	logger.Info().Str("skill", skill.ID).Msg("skill installed to global library")
	return skill, nil
}

// RemoveGlobal deletes a skill from the global library.
func (s *Service) RemoveGlobal(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if isManagedID(id) {
		return errs.Validation("skill %q is managed by role sync and cannot be removed by hand", id)
	}
	dir := s.paths.SkillDir(id)
	if _, err := s.fs.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return errs.NotFound("skill %q is not installed", id)
		}
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	return s.fs.RemoveAll(dir)
}

// InstallInto places a skill into each target skill directory. Targets
// are absolute workspace skill dirs resolved by the caller from the
// provider profile.
func (s *Service) InstallInto(targets []string, src Source) (Skill, error) {
	skill, files, err := s.resolve(src)
	if err != nil {
		return Skill{}, err
	}
	for _, dir := range targets {
		if err := s.place(filepath.Join(dir, skill.ID), files); err != nil {
			return Skill{}, err
		}
	}
	return skill, nil
}

// InstallGlobalInto copies an already-installed global skill into each
// target skill directory.
func (s *Service) InstallGlobalInto(targets []string, id string) (Skill, error) {
	if err := ValidateID(id); err != nil {
		return Skill{}, err
	}
	srcDir := s.paths.SkillDir(id)
	if _, err := s.fs.Stat(filepath.Join(srcDir, SkillFileName)); err != nil {
		if os.IsNotExist(err) {
			return Skill{}, errs.NotFound("skill %q is not in the global library", id)
		}
		return Skill{}, err
	}
	return s.InstallInto(targets, Source{Path: srcDir})
}

// RemoveFrom deletes the skill from each target skill directory.
// Directories that never held the skill are skipped.
func (s *Service) RemoveFrom(targets []string, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if isManagedID(id) {
		return errs.Validation("skill %q is managed by role sync and cannot be removed by hand", id)
	}
	removed := false
	for _, dir := range targets {
		path := filepath.Join(dir, id)
		if _, err := s.fs.Stat(path); err != nil {
			continue
		}
		if err := s.fs.RemoveAll(path); err != nil {
			return err
		}
		removed = true
	}
	if !removed {
		return errs.NotFound("skill %q is not installed in any target directory", id)
	}
	return nil
}

// ListIn returns the skills found across the target directories,
// deduplicated by id (first directory wins) and sorted.
func (s *Service) ListIn(targets []string) ([]Skill, error) {
	seen := make(map[string]bool)
	var out []Skill
	for _, dir := range targets {
		found, err := s.listDir(dir)
		if err != nil {
			return nil, err
		}
		for _, sk := range found {
			if seen[sk.ID] {
				continue
			}
			seen[sk.ID] = true
			out = append(out, sk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Service) listDir(dir string) ([]Skill, error) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read skills dir %s: %w", dir, err)
	}

	var out []Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		path := filepath.Join(dir, id, SkillFileName)
		content, err := s.fs.ReadFile(path)
		if err != nil {
			continue
		}
		skill, err := ParseSkillMD(id, path, content)
		if err != nil {
			logger.Warn().Str("skill", id).Err(err).Msg("skipping unparseable skill")
			continue
		}
		out = append(out, skill)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// resolve turns a source into a parsed skill plus the file set to place.
func (s *Service) resolve(src Source) (Skill, map[string][]byte, error) {
	set := 0
	if src.Path != "" {
		set++
	}
	if src.URL != "" {
		set++
	}
	if src.Inline != nil {
		set++
	}
	if set != 1 {
		return Skill{}, nil, errs.Validation(
			"skill source must carry exactly one of path, url or inline content")
	}
	switch {
	case src.Inline != nil:
		return s.resolveInline(*src.Inline)
	case src.URL != "":
		return s.resolveURL(src.URL)
	default:
		return s.resolvePath(src.Path)
	}
}

func (s *Service) resolveInline(in InlineSkill) (Skill, map[string][]byte, error) {
	if err := ValidateID(in.ID); err != nil {
		return Skill{}, nil, err
	}
	if isManagedID(in.ID) {
		return Skill{}, nil, errs.Validation("skill id %q is reserved for role sync", in.ID)
	}
	if strings.TrimSpace(in.Body) == "" {
		return Skill{}, nil, errs.Validation("inline skill %q has no body", in.ID)
	}
	skill := Skill{
		ID:          in.ID,
		Name:        in.Name,
		Description: in.Description,
		Body:        in.Body,
	}
	if skill.Name == "" {
		skill.Name = in.ID
	}
	rendered, err := RenderSkillMD(skill)
	if err != nil {
		return Skill{}, nil, err
	}
	return skill, map[string][]byte{SkillFileName: rendered}, nil
}

// resolveURL fetches a SKILL.md over http(s). The id comes from the
// last path segment, or its parent directory when the file is named
// SKILL.md.
func (s *Service) resolveURL(rawURL string) (Skill, map[string][]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Skill{}, nil, errs.Validation("skill url %q must be http or https", rawURL)
	}

	id := strings.TrimSuffix(path.Base(u.Path), ".md")
	if strings.EqualFold(id, "SKILL") {
		id = path.Base(path.Dir(u.Path))
	}
	id = strings.ToLower(id)
	if err := ValidateID(id); err != nil {
		return Skill{}, nil, err
	}
	if isManagedID(id) {
		return Skill{}, nil, errs.Validation("skill id %q is reserved for role sync", id)
	}

	resp, err := s.http.Get(rawURL)
	if err != nil {
		return Skill{}, nil, errs.Transient("fetch skill %s: %v", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Skill{}, nil, errs.Validation("fetch skill %s: status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSkillFetchBytes))
	if err != nil {
		return Skill{}, nil, errs.Transient("read skill %s: %v", rawURL, err)
	}

	skill, err := ParseSkillMD(id, "", body)
	if err != nil {
		return Skill{}, nil, err
	}
	return skill, map[string][]byte{SkillFileName: body}, nil
}

func (s *Service) resolvePath(path string) (Skill, map[string][]byte, error) {
	info, err := s.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Skill{}, nil, errs.NotFound("skill source %s does not exist", path)
		}
		return Skill{}, nil, err
	}

	dir := path
	if !info.IsDir() {
		if filepath.Base(path) != SkillFileName {
			return Skill{}, nil, errs.Validation("skill source file must be named %s", SkillFileName)
		}
		dir = filepath.Dir(path)
	}

	id := filepath.Base(dir)
	if err := ValidateID(id); err != nil {
		return Skill{}, nil, err
	}
	if isManagedID(id) {
		return Skill{}, nil, errs.Validation("skill id %q is reserved for role sync", id)
	}

	manifest, err := s.fs.ReadFile(filepath.Join(dir, SkillFileName))
	if err != nil {
		return Skill{}, nil, errs.Validation("skill source %s has no %s", dir, SkillFileName)
	}
	skill, err := ParseSkillMD(id, "", manifest)
	if err != nil {
		return Skill{}, nil, err
	}

	files := make(map[string][]byte)
	if err := s.collect(dir, "", files); err != nil {
		return Skill{}, nil, err
	}
	return skill, files, nil
}

// collect reads the source tree into memory, keyed by relative path.
func (s *Service) collect(root, rel string, files map[string][]byte) error {
	entries, err := s.fs.ReadDir(filepath.Join(root, rel))
	if err != nil {
		return err
	}
	for _, entry := range entries {
		childRel := filepath.Join(rel, entry.Name())
		if entry.IsDir() {
			if err := s.collect(root, childRel, files); err != nil {
				return err
			}
			continue
		}
		data, err := s.fs.ReadFile(filepath.Join(root, childRel))
		if err != nil {
			return err
		}
		files[childRel] = data
	}
	return nil
}

// place writes the file set under dir, replacing any previous install.
func (s *Service) place(dir string, files map[string][]byte) error {
	if err := s.fs.RemoveAll(dir); err != nil {
		return err
	}
	for rel, data := range files {
		target := filepath.Join(dir, rel)
		if err := s.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := s.fs.WriteFile(target, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func isManagedID(id string) bool {
	for _, managed := range provider.ManagedRoleSkillIDs {
		if id == managed {
			return true
		}
	}
	return false
}
