package worklog

import (
	"strings"
	"testing"
)

// TestSummarizeMarkerLines checks the highest-priority strategy.
func TestSummarizeMarkerLines(t *testing.T) {
	output := strings.Join([]string{
		"running tests...",
		"Summary: reworked the session handling",
		"- extracted token refresh",
		"- tightened cookie flags",
		"",
		"created src/auth/session.ts",
	}, "\n")

	summary := Summarize(output)
	if len(summary) != 3 {
		t.Fatalf("summary = %v, want 3 lines", summary)
	}
	if !strings.HasPrefix(summary[0], "Summary:") {
		t.Fatalf("first line = %q, want marker line", summary[0])
	}
}

// TestSummarizeKoreanMarker checks localized completion markers.
func TestSummarizeKoreanMarker(t *testing.T) {
	output := "빌드 중...\n완료: 로그인 버그 수정\n테스트 통과\n"

	summary := Summarize(output)
	if len(summary) == 0 || !strings.Contains(summary[0], "완료") {
		t.Fatalf("summary = %v, want Korean marker line first", summary)
	}
}

// TestSummarizeActionVerbs checks the second strategy.
func TestSummarizeActionVerbs(t *testing.T) {
	output := strings.Join([]string{
		"some preamble",
		"- Added retry logic to the API client",
		"- Fixed the race in the poller",
		"other noise",
	}, "\n")

	summary := Summarize(output)
	if len(summary) != 2 {
		t.Fatalf("summary = %v, want 2 verb lines", summary)
	}
	if !strings.HasPrefix(summary[0], "Added") || !strings.HasPrefix(summary[1], "Fixed") {
		t.Fatalf("unexpected summary: %v", summary)
	}
}

// TestSummarizeSourceFilesSkipsVCSNoise checks the third strategy.
func TestSummarizeSourceFilesSkipsVCSNoise(t *testing.T) {
	output := strings.Join([]string{
		"\tmodified:   src/app.ts",
		"rewrote src/components/board.tsx for the new layout",
		"nothing to commit, working tree clean",
	}, "\n")

	summary := Summarize(output)
	if len(summary) != 1 {
		t.Fatalf("summary = %v, want 1 line", summary)
	}
	if !strings.Contains(summary[0], "board.tsx") {
		t.Fatalf("summary = %v, want the non-noise source line", summary)
	}
}

// TestSummarizeTrailingLines checks the last-lines fallback.
func TestSummarizeTrailingLines(t *testing.T) {
	output := strings.Join([]string{
		"ok",
		"the refactor touched twelve call sites in total",
		"all integration checks passed on the second run",
	}, "\n")

	summary := Summarize(output)
	if len(summary) != 2 {
		t.Fatalf("summary = %v, want 2 substantial lines", summary)
	}
	if summary[1] != "all integration checks passed on the second run" {
		t.Fatalf("last line = %q", summary[1])
	}
}

// TestSummarizeGenericFallback checks the summary is never empty.
func TestSummarizeGenericFallback(t *testing.T) {
	for _, output := range []string{"", "\n\n", "ok\nhm\n??"} {
		summary := Summarize(output)
		if len(summary) != 1 || summary[0] != fallbackSummary {
			t.Fatalf("Summarize(%q) = %v, want generic fallback", output, summary)
		}
	}
}
