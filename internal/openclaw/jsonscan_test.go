package openclaw

import (
	"testing"

	"opengoat/internal/errs"
)

func TestExtractJSONSkipsNoise(t *testing.T) {
	out := "Config warnings: deprecated key agents.defaults\n" +
		"Config warnings: unknown key theme\n" +
		`{"agents":[{"id":"root","workspace":"/tmp/ws/root"}]}` + "\n" +
		"trailing banner\n"

	payload, err := ExtractJSON(out)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if payload != `{"agents":[{"id":"root","workspace":"/tmp/ws/root"}]}` {
		t.Errorf("payload = %q", payload)
	}
}

func TestExtractJSONMultiline(t *testing.T) {
	out := "warning line\n{\n  \"version\": \"1.2.3\"\n}\n"
	payload, err := ExtractJSON(out)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	var v struct {
		Version string `json:"version"`
	}
	if err := DecodeJSON(payload, &v); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if v.Version != "1.2.3" {
		t.Errorf("version = %q", v.Version)
	}
}

func TestExtractJSONBracesInsideStrings(t *testing.T) {
	out := `{"msg":"a } tricky { string \" with quotes"}`
	payload, err := ExtractJSON(out)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if payload != out {
		t.Errorf("payload = %q", payload)
	}
}

func TestExtractJSONArrayPayload(t *testing.T) {
	payload, err := ExtractJSON("noise\n[1, 2, 3]")
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if payload != "[1, 2, 3]" {
		t.Errorf("payload = %q", payload)
	}
}

func TestExtractJSONNoPayload(t *testing.T) {
	_, err := ExtractJSON("plain text only\nno json here\n")
	if !errs.IsKind(err, errs.KindTransient) {
		t.Errorf("err = %v, want transient", err)
	}
}

func TestStripNoiseIdempotent(t *testing.T) {
	in := "Config warnings: key x\nreal output\n"
	once := StripNoise(in)
	if once != StripNoise(once) {
		t.Error("StripNoise must be idempotent")
	}
	if once != "real output\n" {
		t.Errorf("got %q", once)
	}
}

func TestParseEnvelope(t *testing.T) {
	out := `{"runId":"r-1","status":"ok","result":{"sessionId":"s-9","payloads":[{"text":"first"},{"text":"second"}]}}`
	env, text, ok := ParseEnvelope(out)
	if !ok {
		t.Fatal("envelope should parse")
	}
	if env.RunID != "r-1" || env.Result.SessionID != "s-9" {
		t.Errorf("env = %+v", env)
	}
	if text != "first\n\nsecond" {
		t.Errorf("text = %q", text)
	}

	t.Run("plain text is not an envelope", func(t *testing.T) {
		if _, _, ok := ParseEnvelope("just words"); ok {
			t.Error("plain text must not parse as envelope")
		}
	})
	t.Run("json without runId is not an envelope", func(t *testing.T) {
		if _, _, ok := ParseEnvelope(`{"status":"ok"}`); ok {
			t.Error("missing runId must not parse as envelope")
		}
	})
}
