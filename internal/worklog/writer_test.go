package worklog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestWriteCreatesFileWithHeader(t *testing.T) {
	dir := t.TempDir()
	writer := NewWriterForTests(fixedClock(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)))

	err := writer.Write(Entry{
		ProjectPath: dir,
		AgentName:   "Nova",
		TicketTitle: "Fix login redirect",
		Success:     true,
		CommitHash:  "9f8e7d6",
		Output:      "Summary: patched the redirect handler\n- added a regression test",
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "# Agent Work Log") {
		t.Fatalf("missing header, got:\n%s", content)
	}
	for _, want := range []string{
		"## 2026-03-14 09:30",
		"Nova",
		"**Ticket:** Fix login redirect",
		"**Status:** ✅ Completed",
		"**Commit:** `9f8e7d6`",
		"- Summary: patched the redirect handler",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("log missing %q, got:\n%s", want, content)
		}
	}
}

func TestWritePrependsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	writer := NewWriterForTests(fixedClock(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)))

	first := Entry{ProjectPath: dir, AgentName: "Nova", TicketTitle: "older work", Success: true}
	second := Entry{ProjectPath: dir, AgentName: "Nova", TicketTitle: "newer work", Success: true}

	if err := writer.Write(first); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if err := writer.Write(second); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)

	newerAt := strings.Index(content, "newer work")
	olderAt := strings.Index(content, "older work")
	if newerAt < 0 || olderAt < 0 {
		t.Fatalf("missing entries, got:\n%s", content)
	}
	if newerAt > olderAt {
		t.Fatalf("newest entry should come first, got:\n%s", content)
	}
	if strings.Count(content, "# Agent Work Log") != 1 {
		t.Fatalf("header duplicated, got:\n%s", content)
	}
}

func TestWriteOmitsCommitLineWithoutHash(t *testing.T) {
	dir := t.TempDir()
	writer := NewWriterForTests(fixedClock(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)))

	err := writer.Write(Entry{
		ProjectPath: dir,
		AgentName:   "Nova",
		TicketTitle: "broken build",
		Success:     false,
		Output:      "error: tests never passed",
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)

	if strings.Contains(content, "**Commit:**") {
		t.Fatalf("failed run should have no commit line, got:\n%s", content)
	}
	if !strings.Contains(content, "**Status:** ❌ Failed") {
		t.Fatalf("missing failed status, got:\n%s", content)
	}
}

func TestWriteEmbedsRecentScreenshots(t *testing.T) {
	dir := t.TempDir()
	shots := filepath.Join(dir, "screenshots")
	if err := os.MkdirAll(shots, 0o755); err != nil {
		t.Fatalf("mkdir screenshots: %v", err)
	}

	now := time.Now()
	fresh := filepath.Join(shots, "board.png")
	stale := filepath.Join(shots, "ancient.png")
	ignored := filepath.Join(shots, "notes.txt")
	for _, path := range []string{fresh, stale, ignored} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	old := now.Add(-time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	writer := NewWriterForTests(fixedClock(now))
	err := writer.Write(Entry{ProjectPath: dir, AgentName: "Nova", TicketTitle: "ui polish", Success: true})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "![screenshot](screenshots/board.png)") {
		t.Fatalf("missing fresh screenshot link, got:\n%s", content)
	}
	if strings.Contains(content, "ancient.png") {
		t.Fatalf("stale screenshot should be excluded, got:\n%s", content)
	}
	if strings.Contains(content, "notes.txt") {
		t.Fatalf("non-image file should be excluded, got:\n%s", content)
	}
}

func TestWriteRebuildsMissingHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte("legacy notes without any separator\n"), 0o644); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	writer := NewWriterForTests(fixedClock(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)))
	err := writer.Write(Entry{ProjectPath: dir, AgentName: "Nova", TicketTitle: "recovery", Success: true})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "# Agent Work Log") {
		t.Fatalf("header not rebuilt, got:\n%s", content)
	}
	if !strings.Contains(content, "legacy notes without any separator") {
		t.Fatalf("old content lost, got:\n%s", content)
	}
	if strings.Index(content, "recovery") > strings.Index(content, "legacy notes") {
		t.Fatalf("new entry should precede legacy content, got:\n%s", content)
	}
}
