package worklog

import (
	"regexp"
	"strings"
)

// fallbackSummary is emitted when no heuristic recognizes the output.
const fallbackSummary = "Work completed."

// markerPattern matches explicit summary or completion marker lines,
// including the Korean forms used by localized agent CLIs.
var markerPattern = regexp.MustCompile(`(?i)^\W{0,3}(summary\b|completed\b|작업 요약|요약|완료)`)

// actionVerbs lead lines that describe concrete work performed.
var actionVerbs = []string{
	"created", "added", "fixed", "updated", "implemented", "removed",
	"refactored", "renamed", "moved", "deleted", "installed", "wrote",
	"생성", "추가", "수정", "구현", "삭제", "변경",
}

// sourceExtensions identify lines that reference touched source files.
var sourceExtensions = []string{
	".go", ".ts", ".tsx", ".js", ".jsx", ".py", ".rb", ".rs",
	".css", ".html", ".json", ".sql", ".yaml", ".yml", ".md",
}

// vcsNoise marks version-control status lines that never belong in a
// human-readable summary.
var vcsNoise = []string{
	"modified:", "new file:", "deleted:", "renamed:", "untracked",
	"changes to be committed", "changes not staged", "git status",
	"your branch is", "nothing to commit",
}

// Summarize derives a short human-readable summary from raw agent output.
// Strategies are tried in priority order and the first match wins; the
// result is never empty.
func Summarize(output string) []string {
	lines := strings.Split(output, "\n")

	for _, strategy := range []func([]string) []string{
		markerLines,
		actionVerbLines,
		sourceFileLines,
		trailingLines,
	} {
		if summary := strategy(lines); len(summary) > 0 {
			return summary
		}
	}
	return []string{fallbackSummary}
}

// markerLines returns the first marker line plus a few following lines.
func markerLines(lines []string) []string {
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !markerPattern.MatchString(trimmed) {
			continue
		}

		summary := []string{trimmed}
		for _, follow := range lines[i+1:] {
			follow = strings.TrimSpace(follow)
			if follow == "" {
				break
			}
			summary = append(summary, follow)
			if len(summary) == 4 {
				break
			}
		}
		return summary
	}
	return nil
}

// actionVerbLines collects lines that begin with a known action verb.
func actionVerbLines(lines []string) []string {
	var summary []string
	for _, line := range lines {
		trimmed := strings.TrimLeft(strings.TrimSpace(line), "-*• ")
		lower := strings.ToLower(trimmed)
		for _, verb := range actionVerbs {
			if strings.HasPrefix(lower, verb) {
				summary = append(summary, trimmed)
				break
			}
		}
		if len(summary) == 5 {
			break
		}
	}
	return summary
}

// sourceFileLines collects lines referencing source files, skipping
// version-control status noise.
func sourceFileLines(lines []string) []string {
	var summary []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isVCSNoise(trimmed) {
			continue
		}
		if !mentionsSourceFile(trimmed) {
			continue
		}
		summary = append(summary, trimmed)
		if len(summary) == 5 {
			break
		}
	}
	return summary
}

// trailingLines falls back to the last few substantial output lines.
func trailingLines(lines []string) []string {
	var summary []string
	for i := len(lines) - 1; i >= 0 && len(summary) < 3; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if len(trimmed) < 12 {
			continue
		}
		summary = append([]string{trimmed}, summary...)
	}
	return summary
}

// mentionsSourceFile reports whether the line references a source file.
func mentionsSourceFile(line string) bool {
	lower := strings.ToLower(line)
	for _, ext := range sourceExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

// isVCSNoise reports whether the line is version-control status output.
func isVCSNoise(line string) bool {
	lower := strings.ToLower(line)
	for _, noise := range vcsNoise {
		if strings.Contains(lower, noise) {
			return true
		}
	}
	return false
}
