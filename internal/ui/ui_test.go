package ui

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/kquery/internal/model"
)

func TestColorEnabled(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		w    io.Writer
		want bool
	}{
		{"always beats no color", map[string]string{"KQ_COLOR": "always", "NO_COLOR": "1"}, &bytes.Buffer{}, true},
		{"never beats force", map[string]string{"KQ_COLOR": "never", "CLICOLOR_FORCE": "1"}, &bytes.Buffer{}, false},
		{"no color wins", map[string]string{"KQ_COLOR": "", "NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, &bytes.Buffer{}, false},
		{"forced", map[string]string{"KQ_COLOR": "auto", "NO_COLOR": "", "CLICOLOR_FORCE": "1"}, &bytes.Buffer{}, true},
		{"buffer is not a terminal", map[string]string{"KQ_COLOR": "", "NO_COLOR": "", "CLICOLOR_FORCE": ""}, &bytes.Buffer{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if got := ColorEnabled(tt.w); got != tt.want {
				t.Errorf("ColorEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenderStatus(t *testing.T) {
	SetColor(true)
	defer SetColor(false)
	if got := RenderStatus("open"); !strings.Contains(got, "\x1b[38;5;114m") {
		t.Errorf("open = %q", got)
	}
	SetColor(false)
	if got := RenderStatus("open"); got != "open" {
		t.Errorf("uncolored open = %q", got)
	}
}

func TestPrintBeads(t *testing.T) {
	SetColor(false)
	var buf bytes.Buffer
	err := PrintBeads(&buf, []*model.Bead{
		{ID: "kd-1", Status: model.StatusOpen, Priority: 2, Title: "first"},
		{ID: "kd-22", Status: model.StatusClosed, Assignee: "bob", Title: "second"},
	})
	if err != nil {
		t.Fatalf("PrintBeads: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[1], "kd-1 ") || !strings.Contains(lines[1], " - ") {
		t.Errorf("row 1 = %q", lines[1])
	}
	if !strings.Contains(lines[2], "bob") || !strings.HasSuffix(lines[2], "second") {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestPrintHistory(t *testing.T) {
	SetColor(false)
	var buf bytes.Buffer
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	err := PrintHistory(&buf, []*model.HistoryEntry{{EntityRef: "kd-1", Field: "status", Actor: "alice", OldValue: "open", NewValue: "closed", CreatedAt: at}})
	if err != nil {
		t.Fatalf("PrintHistory: %v", err)
	}
	if !strings.Contains(buf.String(), `"open" -> "closed"`) || !strings.Contains(buf.String(), "2026-03-01 09:30") {
		t.Errorf("output = %q", buf.String())
	}
}
