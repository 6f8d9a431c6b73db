package reports

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rivalscan/rivalscan/internal/agent/core"
)

// Writer persists finished research runs to disk.
type Writer struct {
	Dir         string
	SaveRawData bool
}

// Write saves the markdown report and, when enabled, the raw outcome JSON
// next to it. Returns the markdown file path.
func (w Writer) Write(outcome core.ResearchOutcome) (string, error) {
	if outcome.Report == nil {
		return "", fmt.Errorf("outcome has no report")
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating reports dir: %w", err)
	}

	filename := fmt.Sprintf("competitive_research_%s_%s.md",
		querySlug(outcome.Report.Query.Query),
		time.Now().Format("20060102_150405"))
	mdPath := filepath.Join(w.Dir, filename)

	if err := os.WriteFile(mdPath, []byte(outcome.MarkdownReport), 0o644); err != nil {
		return "", fmt.Errorf("writing markdown report: %w", err)
	}

	if w.SaveRawData {
		data, err := json.MarshalIndent(outcome, "", "  ")
		if err != nil {
			return mdPath, fmt.Errorf("encoding raw data: %w", err)
		}
		jsonPath := strings.TrimSuffix(mdPath, ".md") + "_data.json"
		if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
			return mdPath, fmt.Errorf("writing raw data: %w", err)
		}
	}
	return mdPath, nil
}

func querySlug(query string) string {
	if len(query) > 30 {
		query = query[:30]
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_")
	return replacer.Replace(query)
}
