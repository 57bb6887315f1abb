package reconcile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/veloria/catalogsync/internal/domain"
	"github.com/veloria/catalogsync/internal/platform/runid"
)

// SavePlan writes the plan as JSON so a later apply can execute it
// unchanged.
func SavePlan(path string, plan *domain.Plan) error {
	raw, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("reconcile: encode plan: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("reconcile: create plan directory: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("reconcile: write plan %s: %w", path, err)
	}
	return nil
}

// LoadPlan reads a plan persisted by SavePlan. Pairs are not persisted;
// applying a loaded plan relies on its changes and orphans alone.
func LoadPlan(path string) (*domain.Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reconcile: read plan %s: %w", path, err)
	}
	var plan domain.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("reconcile: parse plan %s: %w", path, err)
	}
	if !runid.Valid(plan.ID) {
		return nil, fmt.Errorf("reconcile: plan %s carries malformed run id %q", path, plan.ID)
	}
	return &plan, nil
}

// runReport is the machine-readable envelope written to stdout at the end
// of every run.
type runReport struct {
	Plan      string           `json:"plan"`
	Mode      string           `json:"mode"`
	Summary   domain.Summary   `json:"summary"`
	Findings  []domain.Finding `json:"findings,omitempty"`
	CleanExit bool             `json:"clean"`
}

// WriteReport emits the machine-readable run report.
func WriteReport(w io.Writer, plan *domain.Plan, summary domain.Summary, mode string) error {
	report := runReport{
		Plan:      plan.ID,
		Mode:      mode,
		Summary:   summary,
		Findings:  plan.Findings,
		CleanExit: summary.Clean(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// RenderPlan writes the human rendering of a plan.
func RenderPlan(w io.Writer, plan *domain.Plan) {
	fmt.Fprintf(w, "plan %s (%s)\n", plan.ID, plan.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "  content records:  %d\n", plan.Summary.ContentRecords)
	fmt.Fprintf(w, "  commerce records: %d\n", plan.Summary.CommerceRecords)
	fmt.Fprintf(w, "  matched: %d  unmatched: %d  ambiguous: %d  duplicates: %d  low-confidence: %d\n",
		plan.Summary.Matched, plan.Summary.Unmatched, plan.Summary.Ambiguous,
		plan.Summary.Duplicates, plan.Summary.LowConfidence)

	if len(plan.Changes) == 0 {
		fmt.Fprintln(w, "  no changes: stores are converged")
	} else {
		fmt.Fprintf(w, "  pending changes: %d\n", len(plan.Changes))
		for _, change := range plan.Changes {
			fmt.Fprintf(w, "    [%s] %s %q: %s -> %s\n",
				change.Target, change.Field, change.DisplayName, renderValue(change.Old), renderValue(change.New))
		}
	}
	if len(plan.Orphans) > 0 {
		fmt.Fprintf(w, "  orphans: %d\n", len(plan.Orphans))
		for _, orphan := range plan.Orphans {
			fmt.Fprintf(w, "    %s %q -> %s\n", orphan.RecordID, orphan.DisplayName, orphan.Action)
		}
	}
	if len(plan.Findings) > 0 {
		fmt.Fprintf(w, "  findings: %d\n", len(plan.Findings))
		for _, finding := range plan.Findings {
			fmt.Fprintf(w, "    [%s] %s %q: %s\n", finding.Kind, finding.System, finding.DisplayName, finding.Detail)
		}
	}
}

// RenderResults writes the human rendering of an apply run.
func RenderResults(w io.Writer, results []domain.ApplyResult, summary domain.Summary) {
	for _, result := range results {
		change := result.Change
		switch {
		case result.Applied:
			fmt.Fprintf(w, "  applied [%s] %s %q\n", change.Target, change.Field, change.DisplayName)
		case result.Skipped:
			fmt.Fprintf(w, "  skipped [%s] %s %q: %s\n", change.Target, change.Field, change.DisplayName, result.Reason)
		default:
			fmt.Fprintf(w, "  FAILED  [%s] %s %q: %s\n", change.Target, change.Field, change.DisplayName, result.Reason)
		}
	}
	fmt.Fprintf(w, "attempted %d, succeeded %d, failed %d, skipped %d\n",
		summary.Attempted, summary.Succeeded, summary.Failed, summary.Skipped)
}

// renderValue truncates long values so plan listings stay scannable.
func renderValue(v string) string {
	if v == "" {
		return "(empty)"
	}
	if len(v) > 60 {
		return v[:57] + "..."
	}
	return v
}
