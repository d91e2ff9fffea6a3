// Package openclaw drives the external OpenClaw runtime: CLI and
// gateway clients, the inventory reconciler, and the runtime log
// reader used to surface in-flight activity.
package openclaw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"opengoat/internal/config"
	"opengoat/internal/errs"
	"opengoat/internal/ports"
	"opengoat/pkg/logger"
)

// MinVersion is the oldest OpenClaw release the reconciler understands.
const MinVersion = "0.9.0"

// commandTimeout bounds every management sub-command. Invoke is
// exempt; it runs under the caller's context.
const commandTimeout = 30 * time.Second

// GatewayConfig is the persisted shape of <home>/openclaw-gateway.json.
type GatewayConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url,omitempty"`
	Token   string `json:"token,omitempty"`
}

// RuntimeAgent is one entry of `openclaw agents list --json`.
type RuntimeAgent struct {
	ID        string `json:"id"`
	Workspace string `json:"workspace"`
}

// SkillsInfo is the directory layout `openclaw skills list --json` reports.
type SkillsInfo struct {
	WorkspaceDir     string `json:"workspaceDir"`
	ManagedSkillsDir string `json:"managedSkillsDir"`
}

// InvokeRequest carries one agent run through the runtime.
type InvokeRequest struct {
	AgentID   string
	SessionID string
	Message   string
	ExtraArgs []string
}

// InvokeResult is the captured outcome of a run.
type InvokeResult struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	SessionID string // provider-assigned, when surfaced
}

// Envelope is the gateway JSON result shape. When a run's stdout
// parses as an envelope, the payload texts become the canonical output.
type Envelope struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
	Result struct {
		SessionID string `json:"sessionId,omitempty"`
		Payloads  []struct {
			Text string `json:"text"`
		} `json:"payloads"`
	} `json:"result"`
}

// ParseEnvelope tries to read s as a gateway envelope. The joined
// payload texts win over raw output when parsing succeeds.
func ParseEnvelope(s string) (Envelope, string, bool) {
	payload, err := ExtractJSON(s)
	if err != nil {
		return Envelope{}, "", false
	}
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Envelope{}, "", false
	}
	if env.RunID == "" || len(env.Result.Payloads) == 0 {
		return Envelope{}, "", false
	}
	texts := make([]string, 0, len(env.Result.Payloads))
	for _, p := range env.Result.Payloads {
		texts = append(texts, p.Text)
	}
	return env, strings.Join(texts, "\n\n"), true
}

// Client talks to OpenClaw through the local binary or, when the
// gateway config enables it, over HTTP.
type Client struct {
	runner ports.CommandRunner
	fs     ports.Filesystem
	paths  config.Paths
	http   *http.Client
}

// NewClient returns an OpenClaw client over the given home layout.
func NewClient(runner ports.CommandRunner, fs ports.Filesystem, paths config.Paths) *Client {
	return &Client{
		runner: runner,
		fs:     fs,
		paths:  paths,
		http:   &http.Client{Timeout: commandTimeout},
	}
}

// GatewayConfig loads the persisted gateway settings; a missing file
// means gateway mode is off.
func (c *Client) GatewayConfig() (GatewayConfig, error) {
	data, err := c.fs.ReadFile(c.paths.GatewayConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return GatewayConfig{}, nil
		}
		return GatewayConfig{}, fmt.Errorf("read gateway config: %w", err)
	}
	var cfg GatewayConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return GatewayConfig{}, errs.Validation("malformed openclaw-gateway.json: %v", err)
	}
	return cfg, nil
}

// SetGatewayConfig persists the gateway settings.
func (c *Client) SetGatewayConfig(cfg GatewayConfig) error {
	if cfg.Enabled && cfg.URL == "" {
		return errs.Validation("gateway mode requires a url")
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return c.fs.WriteFileAtomic(c.paths.GatewayConfigPath(), append(data, '\n'), 0o600)
}

// Version returns the runtime version and checks it against MinVersion.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.command(ctx, "version", "--json")
	if err != nil {
		return "", err
	}
	var payload struct {
		Version string `json:"version"`
	}
	if err := DecodeJSON(out, &payload); err != nil {
		return "", err
	}
	v, err := semver.NewVersion(strings.TrimPrefix(payload.Version, "v"))
	if err != nil {
		return payload.Version, errs.RuntimeSync("unparseable openclaw version %q: %v", payload.Version, err)
	}
	if v.LessThan(semver.MustParse(MinVersion)) {
		return payload.Version, errs.RuntimeSync(
			"openclaw %s is older than the minimum supported %s", payload.Version, MinVersion)
	}
	return payload.Version, nil
}

// ListAgents enumerates the runtime's agent inventory.
func (c *Client) ListAgents(ctx context.Context) ([]RuntimeAgent, error) {
	out, err := c.command(ctx, "agents", "list", "--json")
	if err != nil {
		return nil, err
	}
	var payload struct {
		Agents []RuntimeAgent `json:"agents"`
	}
	if err := DecodeJSON(out, &payload); err != nil {
		return nil, err
	}
	return payload.Agents, nil
}

// CreateAgent registers an agent with the runtime. An agent that
// already exists there is success, so sync-after-failure converges.
func (c *Client) CreateAgent(ctx context.Context, id, workspace string) error {
	out, err := c.command(ctx, "agents", "add", id, "--workspace", workspace, "--json")
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return err
	}
	_ = out
	return nil
}

// DeleteAgent removes an agent from the runtime. Already gone is fine.
func (c *Client) DeleteAgent(ctx context.Context, id string) error {
	_, err := c.command(ctx, "agents", "delete", id, "--json")
	if err != nil && !strings.Contains(err.Error(), "not found") {
		return err
	}
	return nil
}

// ListSkills reports the runtime's skill directory layout.
func (c *Client) ListSkills(ctx context.Context) (SkillsInfo, error) {
	out, err := c.command(ctx, "skills", "list", "--json")
	if err != nil {
		return SkillsInfo{}, err
	}
	var info SkillsInfo
	if err := DecodeJSON(out, &info); err != nil {
		return SkillsInfo{}, err
	}
	return info, nil
}

// ConfigSet writes one runtime config key.
func (c *Client) ConfigSet(ctx context.Context, key, value string) error {
	_, err := c.command(ctx, "config", "set", key, value, "--json")
	return err
}

// PluginPaths reads plugins.load.paths from the runtime config.
func (c *Client) PluginPaths(ctx context.Context) ([]string, error) {
	out, err := c.command(ctx, "config", "get", "plugins.load.paths", "--json")
	if err != nil {
		return nil, err
	}
	var payload struct {
		Value []string `json:"value"`
	}
	if err := DecodeJSON(out, &payload); err != nil {
		return nil, err
	}
	return payload.Value, nil
}

// SetPluginPaths rewrites plugins.load.paths.
func (c *Client) SetPluginPaths(ctx context.Context, paths []string) error {
	encoded, err := json.Marshal(paths)
	if err != nil {
		return err
	}
	return c.ConfigSet(ctx, "plugins.load.paths", string(encoded))
}

// EnablePlugin enables one plugin id.
func (c *Client) EnablePlugin(ctx context.Context, id string) error {
	_, err := c.command(ctx, "plugins", "enable", id, "--json")
	return err
}

// Invoke runs an agent. Gateway mode posts to the configured endpoint;
// binary mode shells out and streams output lines to the handlers.
func (c *Client) Invoke(ctx context.Context, req InvokeRequest, onStdout, onStderr ports.LineHandler) (InvokeResult, error) {
	gw, err := c.GatewayConfig()
	if err != nil {
		return InvokeResult{}, err
	}
	if gw.Enabled {
		return c.invokeGateway(ctx, gw, req, onStdout)
	}
	return c.invokeBinary(ctx, req, onStdout, onStderr)
}

func (c *Client) invokeBinary(ctx context.Context, req InvokeRequest, onStdout, onStderr ports.LineHandler) (InvokeResult, error) {
	args := []string{"agent", "run", req.AgentID,
		"--session", req.SessionID,
		"--message", req.Message,
		"--json"}
	args = append(args, req.ExtraArgs...)

	result, err := c.runner.RunStreaming(ctx, ports.CommandSpec{
		Path: config.OpenClawCommand(),
		Args: args,
	}, onStdout, onStderr)
	if err != nil {
		if ctx.Err() != nil {
			return InvokeResult{
				ExitCode: nonZero(result.ExitCode),
				Stdout:   result.Stdout,
				Stderr:   appendLine(result.Stderr, "aborted"),
			}, nil
		}
		if isNotInstalled(err) {
			return InvokeResult{}, errs.Transient("openclaw binary not found: %v", err)
		}
		return InvokeResult{}, errs.RuntimeSync("openclaw run failed: %v", err)
	}

	out := InvokeResult{ExitCode: result.ExitCode, Stdout: result.Stdout, Stderr: result.Stderr}
	if env, _, ok := ParseEnvelope(result.Stdout); ok && env.Result.SessionID != "" {
		out.SessionID = env.Result.SessionID
	}
	return out, nil
}

func (c *Client) invokeGateway(ctx context.Context, gw GatewayConfig, req InvokeRequest, onStdout ports.LineHandler) (InvokeResult, error) {
	body, err := json.Marshal(map[string]string{
		"agentId":   req.AgentID,
		"sessionId": req.SessionID,
		"message":   req.Message,
	})
	if err != nil {
		return InvokeResult{}, err
	}

	url := strings.TrimRight(gw.URL, "/") + "/v1/run"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return InvokeResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if gw.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+gw.Token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return InvokeResult{ExitCode: 1, Stderr: "aborted"}, nil
		}
		return InvokeResult{}, errs.Transient("openclaw gateway unreachable: %v", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return InvokeResult{}, errs.Transient("read gateway response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return InvokeResult{}, errs.RuntimeSync(
			"openclaw gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	stdout := string(payload)
	if onStdout != nil {
		for _, line := range strings.Split(strings.TrimRight(stdout, "\n"), "\n") {
			onStdout(line)
		}
	}
	out := InvokeResult{ExitCode: 0, Stdout: stdout}
	if env, _, ok := ParseEnvelope(stdout); ok && env.Result.SessionID != "" {
		out.SessionID = env.Result.SessionID
	}
	return out, nil
}

// command runs a management sub-command with a bounded timeout and
// returns its stdout. Nonzero exits become RuntimeSync errors carrying
// the runtime's own message when one is parseable.
func (c *Client) command(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	result, err := c.runner.Run(ctx, ports.CommandSpec{
		Path: config.OpenClawCommand(),
		Args: args,
	})
	if err != nil {
		if isNotInstalled(err) {
			return "", errs.Transient("openclaw binary not found: %v", err)
		}
		if ctx.Err() != nil {
			return "", errs.Transient("openclaw %s timed out", strings.Join(args, " "))
		}
		return "", errs.RuntimeSync("openclaw %s: %v", strings.Join(args, " "), err)
	}
	if result.ExitCode != 0 {
		msg := runtimeErrorMessage(result)
		logger.Debug().Strs("args", args).Int("exit", result.ExitCode).Msg("openclaw command failed")
		return "", errs.RuntimeSync("openclaw %s: %s", strings.Join(args, " "), msg)
	}
	return result.Stdout, nil
}

// runtimeErrorMessage digs a human message out of a failed command,
// preferring parseable error JSON over raw stderr.
func runtimeErrorMessage(result ports.CommandResult) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	for _, channel := range []string{result.Stdout, result.Stderr} {
		if err := DecodeJSON(channel, &payload); err == nil {
			if payload.Error != "" {
				return payload.Error
			}
			if payload.Message != "" {
				return payload.Message
			}
		}
	}
	if msg := strings.TrimSpace(StripNoise(result.Stderr)); msg != "" {
		return msg
	}
	return fmt.Sprintf("exit code %d", result.ExitCode)
}

func isNotInstalled(err error) bool {
	return strings.Contains(err.Error(), "executable file not found") ||
		strings.Contains(err.Error(), "no such file or directory")
}

func nonZero(code int) int {
	if code == 0 {
		return 1
	}
	return code
}

func appendLine(s, line string) string {
	if s == "" {
		return line + "\n"
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s + line + "\n"
}
