package worklog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// FileName is the per-project work log file maintained by the writer.
	FileName = "AGENT_WORKLOG.md"

	// screenshotDir is the fixed project-relative directory scanned for
	// recent screenshots to embed in an entry.
	screenshotDir = "screenshots"

	// screenshotWindow bounds how recently an image must have been
	// modified to count as belonging to the finished run.
	screenshotWindow = 10 * time.Minute

	header          = "# Agent Work Log\n\nMost recent entries first.\n\n---\n"
	headerSeparator = "---\n"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// Entry describes one finished agent run to record.
type Entry struct {
	ProjectPath string
	AgentName   string
	AgentAvatar string
	TicketTitle string
	Success     bool
	CommitHash  string
	Output      string
}

// Writer prepends markdown work log entries to a per-project file.
type Writer struct {
	now      func() time.Time
	fileName string
}

// NewWriter constructs a writer using the real clock.
func NewWriter() *Writer {
	return &Writer{
		now:      time.Now,
		fileName: FileName,
	}
}

// NewWriterForTests constructs a writer with an injectable clock.
func NewWriterForTests(now func() time.Time) *Writer {
	return &Writer{
		now:      now,
		fileName: FileName,
	}
}

// Write renders the entry and prepends it immediately after the log file's
// header separator, creating the file with a header when absent.
func (w *Writer) Write(entry Entry) error {
	section := w.render(entry)
	path := filepath.Join(entry.ProjectPath, w.fileName)

	existing, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return os.WriteFile(path, []byte(header+"\n"+section), 0o644)
	}

	content := string(existing)
	idx := strings.Index(content, headerSeparator)
	if idx < 0 {
		// No recognizable header; rebuild one and keep the old content.
		return os.WriteFile(path, []byte(header+"\n"+section+"\n"+content), 0o644)
	}

	insertAt := idx + len(headerSeparator)
	updated := content[:insertAt] + "\n" + section + content[insertAt:]
	return os.WriteFile(path, []byte(updated), 0o644)
}

// render builds one timestamped markdown section for the entry.
func (w *Writer) render(entry Entry) string {
	avatar := strings.TrimSpace(entry.AgentAvatar)
	if avatar == "" {
		avatar = "🤖"
	}

	status := "✅ Completed"
	if !entry.Success {
		status = "❌ Failed"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s — %s %s\n\n", w.now().Format("2006-01-02 15:04"), avatar, entry.AgentName)
	fmt.Fprintf(&b, "**Ticket:** %s\n", entry.TicketTitle)
	fmt.Fprintf(&b, "**Status:** %s\n", status)
	if entry.CommitHash != "" {
		fmt.Fprintf(&b, "**Commit:** `%s`\n", entry.CommitHash)
	}
	b.WriteString("\n")

	for _, line := range Summarize(entry.Output) {
		fmt.Fprintf(&b, "- %s\n", line)
	}

	if shots := w.recentScreenshots(entry.ProjectPath); len(shots) > 0 {
		b.WriteString("\n")
		for _, shot := range shots {
			fmt.Fprintf(&b, "![screenshot](%s)\n", shot)
		}
	}

	b.WriteString("\n")
	return b.String()
}

// recentScreenshots lists project-relative links to images modified within
// the screenshot window, sorted by name.
func (w *Writer) recentScreenshots(projectPath string) []string {
	entries, err := os.ReadDir(filepath.Join(projectPath, screenshotDir))
	if err != nil {
		return nil
	}

	cutoff := w.now().Add(-screenshotWindow)
	var shots []string
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().Before(cutoff) {
			continue
		}
		shots = append(shots, screenshotDir+"/"+entry.Name())
	}

	sort.Strings(shots)
	return shots
}
