package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperpolymath/docudactyl/internal/stats"
)

// writeReports writes run-report.scm and run-report.json to the output
// directory, per spec.md §6.
func (o *Orchestrator) writeReports(report stats.Report) error {
	scmPath := filepath.Join(o.cfg.OutputDir, "run-report.scm")
	if err := os.WriteFile(scmPath, []byte(stats.WriteScheme(report)), 0o644); err != nil {
		return fmt.Errorf("orchestrator: writing %s: %w", scmPath, err)
	}

	jsonPath := filepath.Join(o.cfg.OutputDir, "run-report.json")
	data, err := stats.WriteJSON(report)
	if err != nil {
		return fmt.Errorf("orchestrator: marshaling run report: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("orchestrator: writing %s: %w", jsonPath, err)
	}
	return nil
}
