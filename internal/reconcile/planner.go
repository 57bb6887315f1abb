package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/veloria/catalogsync/internal/domain"
	"github.com/veloria/catalogsync/internal/platform/config"
	"github.com/veloria/catalogsync/internal/platform/runctx"
	"github.com/veloria/catalogsync/internal/platform/runid"
	"github.com/veloria/catalogsync/internal/sources"
)

// Planner produces a reconciliation plan from fresh listings of both
// stores. Planning reads everything and writes nothing.
type Planner struct {
	content  sources.ContentStore
	commerce sources.CommerceStore
	policy   config.Policy
	logger   *zap.Logger
	clock    func() time.Time
	newID    func() string
}

// PlannerDeps lists the dependencies required to construct a Planner.
type PlannerDeps struct {
	Content  sources.ContentStore
	Commerce sources.CommerceStore
	Policy   config.Policy
	Logger   *zap.Logger
	// Clock supplies the current time, injected for tests.
	Clock func() time.Time
	// NewID issues plan identifiers, injected for tests.
	NewID func() string
}

// NewPlanner constructs a Planner from its dependencies.
func NewPlanner(deps PlannerDeps) (*Planner, error) {
	if deps.Content == nil {
		return nil, errors.New("reconcile: content store is required")
	}
	if deps.Commerce == nil {
		return nil, errors.New("reconcile: commerce store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = runid.New
	}
	return &Planner{
		content:  deps.Content,
		commerce: deps.Commerce,
		policy:   deps.Policy,
		logger:   logger,
		clock:    clock,
		newID:    newID,
	}, nil
}

// BuildPlan fetches both listings in full, resolves identities and diffs
// every actionable pair. A listing failure aborts the run; everything after
// the fetch is pure and cannot fail.
func (p *Planner) BuildPlan(ctx context.Context) (*domain.Plan, error) {
	content, err := p.content.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list content store: %w", err)
	}
	commerce, err := p.commerce.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list commerce store: %w", err)
	}
	p.logger.Info("listings fetched",
		zap.Int("content", len(content)),
		zap.Int("commerce", len(commerce)),
	)

	resolver := NewResolver(p.policy, p.logger)
	pairs, findings := resolver.Resolve(content, commerce)

	differ := NewDiffer(p.policy)
	var changes []domain.FieldChange
	for _, pair := range pairs {
		pairChanges, pairFindings := differ.Diff(pair)
		changes = append(changes, pairChanges...)
		findings = append(findings, pairFindings...)
	}

	orphans := p.collectOrphans(pairs)

	// The plan inherits the run identifier so artifacts and log lines
	// correlate. Outside a run scope a fresh identifier is issued.
	id := p.newID()
	if info, ok := runctx.Run(ctx); ok && info.RunID != "" {
		id = info.RunID
	}

	plan := &domain.Plan{
		ID:           id,
		CreatedAt:    p.clock().UTC(),
		SnapshotHash: snapshotHash(content, commerce),
		Pairs:        pairs,
		Changes:      changes,
		Orphans:      orphans,
		Findings:     findings,
		Summary:      summarize(len(content), len(commerce), pairs, changes, orphans),
	}
	p.logger.Info("plan built",
		zap.String("plan", plan.ID),
		zap.Int("changes", len(changes)),
		zap.Int("orphans", len(orphans)),
		zap.Int("findings", len(findings)),
	)
	return plan, nil
}

// collectOrphans selects commerce records with no content counterpart and
// attaches the policy's disposition. Duplicates are a separate finding, not
// orphans.
func (p *Planner) collectOrphans(pairs []domain.MatchPair) []domain.Orphan {
	action := p.policy.OrphanAction()
	var orphans []domain.Orphan
	for _, pair := range pairs {
		if pair.Class != domain.MatchUnmatched || pair.Commerce == nil || pair.Content != nil {
			continue
		}
		orphans = append(orphans, domain.Orphan{
			RecordID:    pair.Commerce.ID,
			DisplayName: pair.Commerce.DisplayName,
			Action:      action,
		})
	}
	return orphans
}

func summarize(contentCount, commerceCount int, pairs []domain.MatchPair, changes []domain.FieldChange, orphans []domain.Orphan) domain.Summary {
	summary := domain.Summary{
		ContentRecords:  contentCount,
		CommerceRecords: commerceCount,
		PendingChanges:  len(changes),
		Orphans:         len(orphans),
	}
	for _, pair := range pairs {
		switch pair.Class {
		case domain.MatchLinked, domain.MatchExactName, domain.MatchOverride:
			summary.Matched++
		case domain.MatchFuzzy:
			summary.LowConfidence++
		case domain.MatchAmbiguous:
			summary.Ambiguous++
		case domain.MatchDuplicate:
			summary.Duplicates++
		case domain.MatchUnmatched:
			summary.Unmatched++
		}
	}
	return summary
}

// snapshotHash fingerprints both listings. Apply compares it against a
// fresh fetch to detect drift between planning and application.
func snapshotHash(content, commerce []domain.ProductRecord) string {
	lines := make([]string, 0, len(content)+len(commerce))
	for _, rec := range content {
		lines = append(lines, fmt.Sprintf("content|%s|%d", rec.ID, rec.UpdatedAt.UnixNano()))
	}
	for _, rec := range commerce {
		lines = append(lines, fmt.Sprintf("commerce|%s|%d", rec.ID, rec.UpdatedAt.UnixNano()))
	}
	sort.Strings(lines)

	digest := sha256.New()
	for _, line := range lines {
		digest.Write([]byte(line))
		digest.Write([]byte{'\n'})
	}
	return hex.EncodeToString(digest.Sum(nil))
}
