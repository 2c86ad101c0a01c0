package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/erazemk/vestique/internal/config"
)

func writeConfig(t *testing.T, dir, backend string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
catalog = "` + filepath.Join(dir, "wardrobe.json") + `"
backend = "` + backend + `"

[annotation]
enabled = false

[logging]
format = "text"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writePNG(t *testing.T, dir, name string, tint uint8) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 48, 48))
	for y := range 48 {
		for x := range 48 {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 5), tint, uint8(y * 5), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCaptureAddListFlow(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := writeConfig(t, dir, "file")
	photo := writePNG(t, dir, "hoodie.png", 30)

	out, err := run(t, "-c", cfg, "capture", photo)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !strings.Contains(out, "nothing in the wardrobe matches") {
		t.Errorf("expected NEW outcome, got %q", out)
	}

	out, err = run(t, "-c", cfg, "capture", photo, "--add-as", "hoodie", "--name", "Grey Hoodie")
	if err != nil {
		t.Fatalf("capture --add-as: %v", err)
	}
	if !strings.Contains(out, "Added Grey Hoodie #0 (Hoodie)") {
		t.Errorf("expected item to be added, got %q", out)
	}

	out, err = run(t, "-c", cfg, "capture", photo)
	if err != nil {
		t.Fatalf("capture again: %v", err)
	}
	if !strings.Contains(out, "counts again in 7 days") {
		t.Errorf("expected too-soon outcome, got %q", out)
	}

	lastWeek := time.Now().AddDate(0, 0, -8).Format(dateLayout)
	if _, err := run(t, "-c", cfg, "edit", "items", "0", "--last-worn", lastWeek); err != nil {
		t.Fatalf("edit: %v", err)
	}
	out, err = run(t, "-c", cfg, "capture", photo)
	if err != nil {
		t.Fatalf("capture after edit: %v", err)
	}
	if !strings.Contains(out, "for the 2nd time") {
		t.Errorf("expected second wear, got %q", out)
	}

	out, err = run(t, "-c", cfg, "list", "items")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Grey Hoodie") || !strings.Contains(out, "items (1)") {
		t.Errorf("unexpected listing output:\n%s", out)
	}
}

func TestAddAndListingsSQLite(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := writeConfig(t, dir, "sqlite")

	if _, err := run(t, "-c", cfg, "add", writePNG(t, dir, "jacket.png", 90), "--type", "jacket"); err != nil {
		t.Fatalf("add: %v", err)
	}
	old := time.Now().AddDate(0, 0, -30).Format(dateLayout)
	if _, err := run(t, "-c", cfg, "edit", "items", "0", "--last-worn", old); err != nil {
		t.Fatalf("edit: %v", err)
	}

	out, err := run(t, "-c", cfg, "listings", "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "items/0") {
		t.Errorf("expected listing sourced from items/0, got:\n%s", out)
	}
	out, _ = run(t, "-c", cfg, "listings", "migrate")
	if !strings.Contains(out, "No items to list") {
		t.Errorf("expected second migration to be a no-op, got %q", out)
	}

	out, err = run(t, "-c", cfg, "listings", "token", "0")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if strings.Count(strings.TrimSpace(out), ".") != 2 {
		t.Errorf("expected a JWT, got %q", out)
	}
}

func TestEditRequiresChange(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := writeConfig(t, dir, "file")
	if _, err := run(t, "-c", cfg, "edit", "items", "0"); err == nil {
		t.Error("expected error for an edit without changes")
	}
	if _, err := run(t, "-c", cfg, "delete", "shoes", "0"); err == nil {
		t.Error("expected error for unknown collection")
	}
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	target := filepath.Join(dir, "conf", "vestique.toml")
	if _, err := run(t, "config", "init", "--path", target); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}
	if _, err := run(t, "config", "init", "--path", target); err == nil {
		t.Error("expected refusal to overwrite")
	}
	out, err := run(t, "-c", target, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Errorf("unexpected validate output %q", out)
	}
}

func TestLevelRouter(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger, cleanup, err := setupLogger(config.Logging{Level: "info", Format: "text"}, "", &stdout, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	logger.Debug("hidden")
	logger.Info("to stdout")
	logger.Error("to stderr")

	if strings.Contains(stdout.String(), "hidden") {
		t.Error("debug record should be filtered")
	}
	if !strings.Contains(stdout.String(), "to stdout") || strings.Contains(stdout.String(), "to stderr") {
		t.Errorf("unexpected stdout: %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "to stderr") {
		t.Errorf("unexpected stderr: %q", stderr.String())
	}
}

func TestLoggerFileAndJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "logs", "vestique.log")
	logger, cleanup, err := setupLogger(config.Logging{Level: "debug", Format: "json"}, logPath, &stdout, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	logger.With("component", "test").Debug("written", slog.Int("n", 1))
	cleanup()

	if !strings.HasPrefix(stdout.String(), "{") {
		t.Errorf("expected JSON output, got %q", stdout.String())
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"component":"test"`) {
		t.Errorf("log file missing record: %q", data)
	}
}

func TestRenderTablePadsRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1"}}, []columnAlignment{alignRight})
	if !strings.Contains(out, "A") || !strings.Contains(out, "1") {
		t.Errorf("unexpected table:\n%s", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("expected empty table without headers")
	}
}

func TestHumanFormatting(t *testing.T) {
	if got := timesWorn(3); got != "for the 3rd time" {
		t.Errorf("timesWorn(3) = %q", got)
	}
	if got := daysAgo(1); got != "yesterday" {
		t.Errorf("daysAgo(1) = %q", got)
	}
	if got := relativeTime(time.Time{}, time.Now()); got != "never" {
		t.Errorf("relativeTime(zero) = %q", got)
	}
	if _, err := parseDate("yesterday"); err == nil {
		t.Error("expected invalid date error")
	}
}
