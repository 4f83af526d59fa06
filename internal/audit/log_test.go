package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"sentraumkm.org/internal/identity"
	"sentraumkm.org/internal/obs"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	logger := obs.Logger()
	orig := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(orig) })
	return &buf
}

func TestLogEventIncludesRequestAndPrincipal(t *testing.T) {
	buf := captureLog(t)

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = identity.ContextWithPrincipal(ctx, identity.Principal{
		ID: "user-1", Role: identity.RoleUser, Partition: "04",
	})

	if err := LogEvent(ctx, "auth.login", map[string]any{"username": "sari"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("log is not valid JSON: %v", err)
	}
	if entry["event"] != "auth.login" || entry["type"] != "audit" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["request_id"] != "req-123" || entry["principal_id"] != "user-1" || entry["partition"] != "04" {
		t.Fatalf("context not propagated: %v", entry)
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["username"] != "sari" {
		t.Fatalf("fields not recorded: %v", entry)
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
}
