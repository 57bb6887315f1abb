package reconcile

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/veloria/catalogsync/internal/domain"
)

func TestSaveLoadPlanRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans", "plan.json")
	plan := &domain.Plan{
		ID:           "01J5Q0A9V7T3S8W2E6R4K1M9C5",
		CreatedAt:    time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC),
		SnapshotHash: "abc123",
		Changes: []domain.FieldChange{{
			Target:      domain.SystemContent,
			RecordID:    "prod-onyx",
			DisplayName: "Onyx",
			Field:       domain.FieldStock,
			Old:         "false",
			New:         "true",
		}},
		Orphans: []domain.Orphan{{RecordID: "gid-77", DisplayName: "Vetiver", Action: domain.OrphanDelete}},
		Summary: domain.Summary{ContentRecords: 1, CommerceRecords: 2, PendingChanges: 1},
	}

	if err := SavePlan(path, plan); err != nil {
		t.Fatalf("SavePlan returned error: %v", err)
	}
	loaded, err := LoadPlan(path)
	if err != nil {
		t.Fatalf("LoadPlan returned error: %v", err)
	}
	if diff := cmp.Diff(plan, loaded); diff != "" {
		t.Fatalf("plan changed across save/load:\n%s", diff)
	}
}

func TestLoadPlanRejectsMalformedRunID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	if err := SavePlan(path, &domain.Plan{ID: "not-a-run-id"}); err != nil {
		t.Fatalf("SavePlan returned error: %v", err)
	}
	if _, err := LoadPlan(path); err == nil {
		t.Fatal("a hand-edited plan with a malformed run id must be rejected")
	}
}

func TestWriteReportShape(t *testing.T) {
	plan := &domain.Plan{ID: "01J5Q0A9V7T3S8W2E6R4K1M9C5"}
	summary := domain.Summary{Matched: 3, Failed: 1}

	var buf bytes.Buffer
	if err := WriteReport(&buf, plan, summary, "apply"); err != nil {
		t.Fatalf("WriteReport returned error: %v", err)
	}

	var decoded struct {
		Plan    string         `json:"plan"`
		Mode    string         `json:"mode"`
		Summary domain.Summary `json:"summary"`
		Clean   bool           `json:"clean"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if decoded.Plan != "01J5Q0A9V7T3S8W2E6R4K1M9C5" || decoded.Mode != "apply" {
		t.Fatalf("unexpected report envelope: %+v", decoded)
	}
	if decoded.Clean {
		t.Fatal("a run with failures must not report clean")
	}
}

func TestRenderPlanMentionsChanges(t *testing.T) {
	plan := &domain.Plan{
		ID:        "01J5Q0A9V7T3S8W2E6R4K1M9C5",
		CreatedAt: time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC),
		Changes: []domain.FieldChange{{
			Target:      domain.SystemCommerce,
			RecordID:    "gid-11",
			DisplayName: "Onyx",
			Field:       domain.FieldSKU,
			Old:         "OLD-1",
			New:         "TERRA-ONYX-6ML",
		}},
		Summary: domain.Summary{PendingChanges: 1},
	}

	var buf bytes.Buffer
	RenderPlan(&buf, plan)
	out := buf.String()
	if !strings.Contains(out, "TERRA-ONYX-6ML") || !strings.Contains(out, "Onyx") {
		t.Fatalf("rendering should show the change:\n%s", out)
	}
}
