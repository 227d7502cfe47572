package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/luki/dhtwatch/internal/config"
)

func TestNew_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo}

	logger := New(cfg, &buf, "1.2.0", "dhtwatch")
	logger.Info("poll cycle", "ok", true)
	logger.Debug("hidden")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "poll cycle" || rec["app"] != "dhtwatch" || rec["version"] != "1.2.0" {
		t.Errorf("unexpected record: %v", rec)
	}
	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug record should be filtered at info level")
	}
}

func TestNew_DevIsPlainText(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.Config{AppEnv: "dev", LogLevel: slog.LevelDebug}, &buf, "dev", "dhtwatch")
	logger.Debug("feed event", "kind", "reading")

	out := buf.String()
	if !strings.Contains(out, "feed event") || !strings.Contains(out, "kind=reading") {
		t.Errorf("dev output = %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("dev output should not contain ANSI escapes: %q", out)
	}
}

func TestOpenFile_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dhtwatch.log")
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	if _, err := f.WriteString("line\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
}
