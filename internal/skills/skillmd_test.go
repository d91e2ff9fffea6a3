package skills

import (
	"strings"
	"testing"
)

func TestParseSkillMD(t *testing.T) {
	t.Run("full frontmatter", func(t *testing.T) {
		content := `---
name: Research
description: Gather and summarize sources
metadata:
  openclaw:
    emoji: "🔎"
    requires:
      config:
        - browser
---

# Research

Look things up before answering.
`
		skill, err := ParseSkillMD("research", "/x/SKILL.md", []byte(content))
		if err != nil {
			t.Fatalf("ParseSkillMD: %v", err)
		}
		if skill.Name != "Research" {
			t.Errorf("name = %q", skill.Name)
		}
		if skill.Description != "Gather and summarize sources" {
			t.Errorf("description = %q", skill.Description)
		}
		if skill.Metadata == nil || skill.Metadata.Emoji != "🔎" {
			t.Errorf("metadata = %+v", skill.Metadata)
		}
		if skill.Metadata.Requires == nil || len(skill.Metadata.Requires.Config) != 1 {
			t.Errorf("requires = %+v", skill.Metadata.Requires)
		}
		if !strings.HasPrefix(skill.Body, "# Research") {
			t.Errorf("body = %q", skill.Body)
		}
	})

	t.Run("no frontmatter falls back to id", func(t *testing.T) {
		skill, err := ParseSkillMD("notes", "", []byte("just a body\n"))
		if err != nil {
			t.Fatalf("ParseSkillMD: %v", err)
		}
		if skill.Name != "notes" {
			t.Errorf("name = %q, want id fallback", skill.Name)
		}
		if skill.Body != "just a body" {
			t.Errorf("body = %q", skill.Body)
		}
	})

	t.Run("malformed frontmatter rejected", func(t *testing.T) {
		_, err := ParseSkillMD("bad", "", []byte("---\nname: [unclosed\n---\nbody"))
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestRenderSkillMDRoundTrip(t *testing.T) {
	in := Skill{
		ID:          "og-board-manager",
		Name:        "Board Manager",
		Description: "Task board duties for managers",
		Body:        "Delegate, review, unblock.",
		Metadata: &OpenClawMeta{
			Requires: &OpenClawRequires{Config: []string{"workspace"}},
		},
	}

	rendered, err := RenderSkillMD(in)
	if err != nil {
		t.Fatalf("RenderSkillMD: %v", err)
	}
	if !strings.HasPrefix(string(rendered), "---\n") {
		t.Fatalf("rendered = %q", rendered)
	}

	out, err := ParseSkillMD(in.ID, "", rendered)
	if err != nil {
		t.Fatalf("ParseSkillMD: %v", err)
	}
	if out.Name != in.Name || out.Description != in.Description || out.Body != in.Body {
		t.Errorf("round trip lost fields: %+v", out)
	}
	if out.Metadata == nil || out.Metadata.Requires == nil || out.Metadata.Requires.Config[0] != "workspace" {
		t.Errorf("round trip lost metadata: %+v", out.Metadata)
	}
}

func TestValidateID(t *testing.T) {
	for _, ok := range []string{"research", "og-board-manager", "a", "x1-y2"} {
		if err := ValidateID(ok); err != nil {
			t.Errorf("ValidateID(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "-lead", "UPPER", "has space", "dot.name"} {
		if err := ValidateID(bad); err == nil {
			t.Errorf("ValidateID(%q) accepted", bad)
		}
	}
}
