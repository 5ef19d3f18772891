package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

func TestNewJSON_LevelAndErrAttr(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewJSON(&buf, slog.LevelWarn)

	logger.Info("dropped")
	logger.Warn("kept", Err(errors.New("boom")))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("want 1 line, got %d: %s", len(lines), buf.String())
	}

	var rec map[string]any
	err := json.Unmarshal(lines[0], &rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if rec["msg"] != "kept" || rec["error"] != "boom" {
		t.Fatalf("unexpected record: %v", rec)
	}
}
