package reports

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rivalscan/rivalscan/internal/agent/core"
)

func sampleOutcome() core.ResearchOutcome {
	return core.ResearchOutcome{
		Success:        true,
		WorkflowID:     "wf-1",
		Report:         &core.ResearchReport{Query: core.ResearchQuery{Query: "CRM software / vendors"}},
		MarkdownReport: "# Competitive Research Report\n",
	}
}

func TestWriteMarkdownOnly(t *testing.T) {
	dir := t.TempDir()
	w := Writer{Dir: dir}

	path, err := w.Write(sampleOutcome())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "competitive_research_CRM_software___vendors_") {
		t.Fatalf("filename = %q", base)
	}
	if !strings.HasSuffix(base, ".md") {
		t.Fatalf("filename = %q", base)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if string(body) != "# Competitive Research Report\n" {
		t.Fatalf("body = %q", body)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the markdown file, got %d entries", len(entries))
	}
}

func TestWriteWithRawData(t *testing.T) {
	dir := t.TempDir()
	w := Writer{Dir: dir, SaveRawData: true}

	path, err := w.Write(sampleOutcome())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	jsonPath := strings.TrimSuffix(path, ".md") + "_data.json"
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read raw data: %v", err)
	}
	var decoded core.ResearchOutcome
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode raw data: %v", err)
	}
	if decoded.WorkflowID != "wf-1" {
		t.Fatalf("workflow id = %q", decoded.WorkflowID)
	}
}

func TestWriteRejectsMissingReport(t *testing.T) {
	w := Writer{Dir: t.TempDir()}
	if _, err := w.Write(core.ResearchOutcome{Success: false}); err == nil {
		t.Fatal("expected error for outcome without report")
	}
}

func TestQuerySlugTruncates(t *testing.T) {
	long := strings.Repeat("a", 40)
	if got := querySlug(long); len(got) != 30 {
		t.Fatalf("slug length = %d, want 30", len(got))
	}
}
