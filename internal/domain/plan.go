package domain

import "time"

// MatchClass records how a pair of records was associated, or why it was not.
type MatchClass string

const (
	// MatchLinked means an explicit stored linkage resolved the pair.
	MatchLinked MatchClass = "linked"
	// MatchExactName means the normalized display names matched exactly.
	MatchExactName MatchClass = "exact-name"
	// MatchOverride means the manual override table supplied the pair.
	MatchOverride MatchClass = "override"
	// MatchFuzzy means one normalized name contains the other. Low
	// confidence: surfaced for human review, never auto-applied.
	MatchFuzzy MatchClass = "fuzzy"
	// MatchAmbiguous means more than one candidate matched a single record.
	MatchAmbiguous MatchClass = "ambiguous"
	// MatchDuplicate means the record shares a normalized name with another
	// record in the same collection group and is excluded from matching.
	MatchDuplicate MatchClass = "duplicate"
	// MatchUnmatched means no counterpart was found.
	MatchUnmatched MatchClass = "unmatched"
)

// Actionable reports whether a pair with this class may feed the reconciler.
func (c MatchClass) Actionable() bool {
	switch c {
	case MatchLinked, MatchExactName, MatchOverride:
		return true
	default:
		return false
	}
}

// MatchPair associates a content record with its commerce counterpart.
// Either side may be nil for unmatched records; both sides are set for
// matched, ambiguous and fuzzy classes.
type MatchPair struct {
	Content  *ProductRecord
	Commerce *ProductRecord
	Class    MatchClass
	// Candidates lists competing record IDs for ambiguous matches.
	Candidates []string
	// Reason is a short human explanation for non-actionable classes.
	Reason string
}

// Field names a reconcilable attribute of a product record.
type Field string

const (
	FieldStock       Field = "stock"
	FieldSKU         Field = "sku"
	FieldMedia       Field = "media"
	FieldPrice       Field = "price"
	FieldDescription Field = "description"
	FieldLinkage     Field = "linkage"
	FieldCollection  Field = "collection"
	// FieldOrphan is a pseudo-field used when reporting orphan actions as
	// apply results.
	FieldOrphan Field = "orphan"
)

// FieldChange is one proposed mutation: write New into Field of the record
// identified by RecordID in the Target system.
type FieldChange struct {
	Target      System `json:"target"`
	RecordID    string `json:"recordId"`
	DisplayName string `json:"displayName"`
	// VariantID narrows the write to one variant for commerce-side price
	// changes. Empty for record-level writes.
	VariantID string `json:"variantId,omitempty"`
	Field     Field  `json:"field"`
	Old       string `json:"old"`
	New       string `json:"new"`
}

// ChangeKey returns a stable identity for the change, used by the applied
// ledger to make re-runs idempotent.
func (c FieldChange) ChangeKey() string {
	id := c.RecordID
	if c.VariantID != "" {
		id += "." + c.VariantID
	}
	return string(c.Target) + "/" + id + "/" + string(c.Field) + "/" + c.New
}

// OrphanAction is the configured disposition for records present in the
// commerce store with no content counterpart.
type OrphanAction string

const (
	// OrphanReport surfaces the record and proposes nothing.
	OrphanReport OrphanAction = "report"
	// OrphanDelete proposes deleting the commerce record.
	OrphanDelete OrphanAction = "delete"
	// OrphanReassign proposes moving the record to a holding collection.
	OrphanReassign OrphanAction = "reassign"
)

// Orphan is a commerce-side record with no content counterpart, together
// with the action the configured policy selected for it.
type Orphan struct {
	RecordID    string       `json:"recordId"`
	DisplayName string       `json:"displayName"`
	Action      OrphanAction `json:"action"`
}

// Plan is the complete output of a resolution + diff run. Applying the same
// plan twice is a no-op the second time.
type Plan struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	// SnapshotHash fingerprints both listings so apply can detect drift
	// between planning and application.
	SnapshotHash string        `json:"snapshotHash"`
	Pairs        []MatchPair   `json:"-"`
	Changes      []FieldChange `json:"changes"`
	Orphans      []Orphan      `json:"orphans"`
	Findings     []Finding     `json:"findings"`
	Summary      Summary       `json:"summary"`
}

// FindingKind classifies a non-actionable observation surfaced by a run.
type FindingKind string

const (
	FindingDuplicate        FindingKind = "duplicate"
	FindingAmbiguous        FindingKind = "ambiguous"
	FindingLowConfidence    FindingKind = "low-confidence"
	FindingAsymmetricLink   FindingKind = "asymmetric-linkage"
	FindingUnmatchedContent FindingKind = "unmatched-content"
	FindingInvalidSKU       FindingKind = "invalid-sku"
)

// Finding is a data-quality observation requiring a human decision. Findings
// never abort a run and are never auto-resolved.
type Finding struct {
	Kind        FindingKind `json:"kind"`
	System      System      `json:"system"`
	RecordID    string      `json:"recordId"`
	DisplayName string      `json:"displayName"`
	Detail      string      `json:"detail"`
	Candidates  []string    `json:"candidates,omitempty"`
}

// ApplyResult records the outcome of executing a single change.
type ApplyResult struct {
	Change  FieldChange `json:"change"`
	Applied bool        `json:"applied"`
	Skipped bool        `json:"skipped"`
	Reason  string      `json:"reason,omitempty"`
}

// Summary is the machine-readable tally a CI job or operator gates on.
type Summary struct {
	ContentRecords  int `json:"contentRecords"`
	CommerceRecords int `json:"commerceRecords"`
	Matched         int `json:"matched"`
	Unmatched       int `json:"unmatched"`
	Ambiguous       int `json:"ambiguous"`
	Duplicates      int `json:"duplicates"`
	LowConfidence   int `json:"lowConfidence"`
	Orphans         int `json:"orphans"`
	PendingChanges  int `json:"pendingChanges"`
	Attempted       int `json:"attempted"`
	Succeeded       int `json:"succeeded"`
	Failed          int `json:"failed"`
	Skipped         int `json:"skipped"`
}

// Clean reports whether the run finished with nothing for a human to act on.
func (s Summary) Clean() bool {
	return s.Ambiguous == 0 && s.Duplicates == 0 && s.Failed == 0
}
