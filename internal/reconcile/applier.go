package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veloria/catalogsync/internal/domain"
	"github.com/veloria/catalogsync/internal/platform/config"
	"github.com/veloria/catalogsync/internal/reconcile/ledger"
	"github.com/veloria/catalogsync/internal/sources"
)

// ErrUnroutableChange is returned when a plan carries a change no store
// operation can execute.
var ErrUnroutableChange = errors.New("reconcile: no route for change")

// Applier executes an ordered plan sequentially. Each change succeeds or
// fails on its own; one failing record never aborts the rest of the run.
type Applier struct {
	content  sources.ContentStore
	commerce sources.CommerceStore
	ledger   ledger.Store
	ttl      time.Duration
	policy   config.Policy
	logger   *zap.Logger
	clock    func() time.Time
	dryRun   bool
}

// ApplierDeps lists the dependencies required to construct an Applier.
type ApplierDeps struct {
	Content  sources.ContentStore
	Commerce sources.CommerceStore
	Ledger   ledger.Store
	// LedgerTTL bounds how long applied-change fingerprints are kept.
	LedgerTTL time.Duration
	Policy    config.Policy
	Logger    *zap.Logger
	// Clock supplies the current time, injected for tests.
	Clock func() time.Time
	// DryRun renders every decision without touching either store.
	DryRun bool
}

// NewApplier constructs an Applier from its dependencies.
func NewApplier(deps ApplierDeps) (*Applier, error) {
	if deps.Content == nil {
		return nil, errors.New("reconcile: content store is required")
	}
	if deps.Commerce == nil {
		return nil, errors.New("reconcile: commerce store is required")
	}
	store := deps.Ledger
	if store == nil {
		store = ledger.NewMemoryStore()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Applier{
		content:  deps.Content,
		commerce: deps.Commerce,
		ledger:   store,
		ttl:      deps.LedgerTTL,
		policy:   deps.Policy,
		logger:   logger,
		clock:    clock,
		dryRun:   deps.DryRun,
	}, nil
}

// Apply executes the plan's changes in order, then its orphan actions. The
// returned summary extends the plan's resolution counts with the apply
// tally.
func (a *Applier) Apply(ctx context.Context, plan *domain.Plan) ([]domain.ApplyResult, domain.Summary) {
	summary := plan.Summary
	results := make([]domain.ApplyResult, 0, len(plan.Changes))

	for _, change := range plan.Changes {
		result := a.applyChange(ctx, change)
		results = append(results, result)
		tally(&summary, result)
	}
	for _, orphan := range plan.Orphans {
		result := a.applyOrphan(ctx, orphan)
		results = append(results, result)
		tally(&summary, result)
	}
	return results, summary
}

func tally(summary *domain.Summary, result domain.ApplyResult) {
	switch {
	case result.Applied:
		summary.Attempted++
		summary.Succeeded++
	case result.Skipped:
		summary.Skipped++
	default:
		summary.Attempted++
		summary.Failed++
	}
}

func (a *Applier) applyChange(ctx context.Context, change domain.FieldChange) domain.ApplyResult {
	log := a.logger.With(
		zap.String("target", string(change.Target)),
		zap.String("record", change.RecordID),
		zap.String("field", string(change.Field)),
	)

	if a.dryRun {
		log.Info("dry-run: would apply change", zap.String("new", change.New))
		return domain.ApplyResult{Change: change, Skipped: true, Reason: "dry-run"}
	}

	now := a.clock()
	seen, err := a.ledger.Seen(ctx, change.ChangeKey(), now)
	if err != nil {
		log.Error("ledger lookup failed", zap.Error(err))
		return domain.ApplyResult{Change: change, Reason: "ledger: " + err.Error()}
	}
	if seen {
		log.Debug("change already applied in a previous run")
		return domain.ApplyResult{Change: change, Skipped: true, Reason: "already applied"}
	}

	if err := a.route(ctx, change); err != nil {
		if sources.IsNotFound(err) {
			// The record vanished between planning and application.
			log.Warn("record gone since planning, skipping", zap.Error(err))
			return domain.ApplyResult{Change: change, Skipped: true, Reason: "record not found"}
		}
		log.Error("change failed", zap.Error(err))
		return domain.ApplyResult{Change: change, Reason: err.Error()}
	}

	if err := a.ledger.Record(ctx, change.ChangeKey(), now, a.ttl); err != nil {
		// The write landed; a ledger miss only costs an extra no-op next
		// run.
		log.Warn("change applied but not recorded in ledger", zap.Error(err))
	}
	log.Info("change applied", zap.String("new", change.New))
	return domain.ApplyResult{Change: change, Applied: true}
}

func (a *Applier) route(ctx context.Context, change domain.FieldChange) error {
	switch change.Target {
	case domain.SystemContent:
		return a.routeContent(ctx, change)
	case domain.SystemCommerce:
		return a.routeCommerce(ctx, change)
	default:
		return fmt.Errorf("%w: unknown target %q", ErrUnroutableChange, change.Target)
	}
}

func (a *Applier) routeContent(ctx context.Context, change domain.FieldChange) error {
	switch change.Field {
	case domain.FieldStock:
		inStock, err := strconv.ParseBool(change.New)
		if err != nil {
			return fmt.Errorf("reconcile: malformed stock value %q", change.New)
		}
		return a.content.PatchProduct(ctx, change.RecordID, sources.ContentPatch{
			Set: map[string]any{"inStock": inStock},
		})
	case domain.FieldPrice:
		price, err := parseMoney(change.New)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		return a.content.PatchProduct(ctx, change.RecordID, sources.ContentPatch{
			Set: map[string]any{"priceCents": price.Amount, "priceCurrency": price.Currency},
		})
	case domain.FieldSKU:
		if change.New == "" {
			return a.content.PatchProduct(ctx, change.RecordID, sources.ContentPatch{
				Unset: []string{"skus"},
			})
		}
		return a.content.PatchProduct(ctx, change.RecordID, sources.ContentPatch{
			Set: map[string]any{"skus": strings.Split(change.New, ",")},
		})
	case domain.FieldMedia:
		ref, err := a.content.ImportImage(ctx, change.New)
		if err != nil {
			return err
		}
		return a.content.PatchProduct(ctx, change.RecordID, sources.ContentPatch{
			Set: map[string]any{"image": map[string]any{"asset": map[string]any{"_ref": ref}}},
		})
	case domain.FieldDescription:
		return a.content.PatchProduct(ctx, change.RecordID, sources.ContentPatch{
			Set: map[string]any{"description": change.New},
		})
	case domain.FieldLinkage:
		return a.content.PatchProduct(ctx, change.RecordID, sources.ContentPatch{
			Set: map[string]any{"shopifyProductId": change.New},
		})
	case domain.FieldCollection:
		return a.content.PatchProduct(ctx, change.RecordID, sources.ContentPatch{
			Set: map[string]any{"collection": change.New},
		})
	default:
		return fmt.Errorf("%w: content field %q", ErrUnroutableChange, change.Field)
	}
}

func (a *Applier) routeCommerce(ctx context.Context, change domain.FieldChange) error {
	switch change.Field {
	case domain.FieldSKU:
		return a.commerce.UpdateSKUs(ctx, change.RecordID, strings.Split(change.New, ","))
	case domain.FieldLinkage:
		return a.commerce.SetContentLink(ctx, change.RecordID, change.New)
	case domain.FieldPrice:
		price, err := parseMoney(change.New)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		if change.VariantID == "" {
			return fmt.Errorf("%w: commerce price change without variant", ErrUnroutableChange)
		}
		return a.commerce.UpdateVariantPrice(ctx, change.RecordID, change.VariantID, price)
	case domain.FieldStock:
		available, err := strconv.ParseBool(change.New)
		if err != nil {
			return fmt.Errorf("reconcile: malformed stock value %q", change.New)
		}
		return a.commerce.SetInventory(ctx, change.RecordID, available)
	case domain.FieldDescription:
		return a.commerce.UpdateDescription(ctx, change.RecordID, change.New)
	case domain.FieldCollection:
		return a.commerce.UpdateCollection(ctx, change.RecordID, domain.CollectionGroup(change.New))
	default:
		return fmt.Errorf("%w: commerce field %q", ErrUnroutableChange, change.Field)
	}
}

func (a *Applier) applyOrphan(ctx context.Context, orphan domain.Orphan) domain.ApplyResult {
	change := domain.FieldChange{
		Target:      domain.SystemCommerce,
		RecordID:    orphan.RecordID,
		DisplayName: orphan.DisplayName,
		Field:       domain.FieldOrphan,
		New:         string(orphan.Action),
	}
	log := a.logger.With(
		zap.String("record", orphan.RecordID),
		zap.String("action", string(orphan.Action)),
	)

	if orphan.Action == domain.OrphanReport {
		return domain.ApplyResult{Change: change, Skipped: true, Reason: "report-only"}
	}
	if a.dryRun {
		log.Info("dry-run: would act on orphan")
		return domain.ApplyResult{Change: change, Skipped: true, Reason: "dry-run"}
	}

	now := a.clock()
	seen, err := a.ledger.Seen(ctx, change.ChangeKey(), now)
	if err != nil {
		return domain.ApplyResult{Change: change, Reason: "ledger: " + err.Error()}
	}
	if seen {
		return domain.ApplyResult{Change: change, Skipped: true, Reason: "already applied"}
	}

	switch orphan.Action {
	case domain.OrphanDelete:
		err = a.commerce.DeleteProduct(ctx, orphan.RecordID)
	case domain.OrphanReassign:
		err = a.commerce.UpdateCollection(ctx, orphan.RecordID, domain.CollectionGroup(a.policy.ReassignCollection))
	default:
		err = fmt.Errorf("%w: orphan action %q", ErrUnroutableChange, orphan.Action)
	}
	if err != nil {
		if sources.IsNotFound(err) {
			log.Warn("orphan gone since planning, skipping")
			return domain.ApplyResult{Change: change, Skipped: true, Reason: "record not found"}
		}
		log.Error("orphan action failed", zap.Error(err))
		return domain.ApplyResult{Change: change, Reason: err.Error()}
	}

	if err := a.ledger.Record(ctx, change.ChangeKey(), now, a.ttl); err != nil {
		log.Warn("orphan action applied but not recorded in ledger", zap.Error(err))
	}
	log.Info("orphan action applied")
	return domain.ApplyResult{Change: change, Applied: true}
}
