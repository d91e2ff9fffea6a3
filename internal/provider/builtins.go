package provider

func builtinProviders() []Provider {
	roleSkills := map[string][]string{
		RoleManager:    {"og-board-manager"},
		RoleIndividual: {"og-board-individual"},
	}

	return []Provider{
		{
			ID:          "openclaw",
			DisplayName: "OpenClaw",
			Kind:        KindAgentRuntime,
			Capabilities: Capabilities{
				Agent:       true,
				Auth:        true,
				Passthrough: true,
				Reportees:   true,
				AgentCreate: true,
				AgentDelete: true,
			},
			Profile: RuntimeProfile{
				WorkingDir: WorkingDirProviderDefault,
				SkillDirs:  []string{"skills"},
				RoleSkills: roleSkills,
			},
		},
		{
			ID:          "codex",
			DisplayName: "Codex CLI",
			Kind:        KindModelCLI,
			Capabilities: Capabilities{
				Model: true,
			},
			Profile: RuntimeProfile{
				WorkingDir: WorkingDirAgentWorkspace,
				SkillDirs:  []string{".agents/skills"},
				RoleSkills: roleSkills,
			},
			Command:    "codex",
			InvokeArgs: []string{"exec", "-"},
		},
		{
			ID:          "claude-code",
			DisplayName: "Claude Code",
			Kind:        KindModelCLI,
			Capabilities: Capabilities{
				Model:       true,
				Passthrough: true,
			},
			Profile: RuntimeProfile{
				WorkingDir: WorkingDirAgentWorkspace,
				SkillDirs:  []string{".agents/skills"},
				RoleSkills: roleSkills,
			},
			Command:    "claude",
			InvokeArgs: []string{"-p"},
		},
	}
}
