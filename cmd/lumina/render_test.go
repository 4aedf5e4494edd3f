package main

import (
	"strings"
	"testing"
)

func TestDisplayStatus(t *testing.T) {
	cases := map[string]string{
		"pending":   "Pending",
		"in-stages": "In-Stages",
		"completed": "Completed",
		" failed ":  "Failed",
		"":          "",
	}
	for input, want := range cases {
		if got := displayStatus(input); got != want {
			t.Errorf("displayStatus(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestRenderStatusLineWithoutColor(t *testing.T) {
	line := renderStatusLine("Running", statusOK, "yes", false)
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("uncolored line contains ANSI codes: %q", line)
	}
	if !strings.Contains(line, "Running:") || !strings.Contains(line, "yes") {
		t.Fatalf("line = %q", line)
	}
}

func TestRenderStatusLineColorized(t *testing.T) {
	line := renderStatusLine("Running", statusError, "no", true)
	if !strings.HasPrefix(line, ansiRed) || !strings.HasSuffix(line, ansiReset) {
		t.Fatalf("line = %q, want red wrapping", line)
	}
}

func TestRenderTableIncludesHeadersAndRows(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Count"},
		[][]string{{"1", "10"}, {"2", "3"}},
		1,
	)
	for _, want := range []string{"ID", "Count", "1", "10"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestQueueStatsRowsSkipsZeroAndSorts(t *testing.T) {
	rows := queueStatsRows(map[string]int{"pending": 2, "failed": 0, "completed": 5})
	if len(rows) != 2 {
		t.Fatalf("rows = %v", rows)
	}
	if rows[0][0] != "Completed" || rows[1][0] != "Pending" {
		t.Fatalf("row order = %v", rows)
	}
}
