package reconcile

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/veloria/catalogsync/internal/domain"
	"github.com/veloria/catalogsync/internal/platform/config"
)

// minFuzzyLen is the shortest normalized name allowed to participate in
// containment matching. Below this, containment is coincidence.
const minFuzzyLen = 4

// Resolver pairs the content listing with the commerce listing. Resolution
// is pure: it proposes nothing and writes nothing, it only classifies.
type Resolver struct {
	overrides map[string]string
	logger    *zap.Logger
}

// NewResolver constructs a Resolver using the policy's override table.
func NewResolver(policy config.Policy, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	overrides := make(map[string]string, len(policy.Overrides))
	for _, pair := range policy.Overrides {
		overrides[NormalizeName(pair.Content)] = NormalizeName(pair.Commerce)
	}
	return &Resolver{overrides: overrides, logger: logger}
}

// resolution tracks per-record match state while passes run. Records are
// addressed by slice index so iteration order, and with it the output
// order, stays deterministic.
type resolution struct {
	content         []domain.ProductRecord
	commerce        []domain.ProductRecord
	contentMatched  []bool
	commerceMatched []bool
	contentDup      []bool
	commerceDup     []bool
	pairs           []domain.MatchPair
	findings        []domain.Finding
}

// Resolve produces a total pairing: every record from both listings appears
// in exactly one pair. Ambiguity is classified, never resolved by an
// arbitrary pick.
func (r *Resolver) Resolve(content, commerce []domain.ProductRecord) ([]domain.MatchPair, []domain.Finding) {
	res := &resolution{
		content:         content,
		commerce:        commerce,
		contentMatched:  make([]bool, len(content)),
		commerceMatched: make([]bool, len(commerce)),
	}
	res.contentDup = markDuplicates(content, &res.findings)
	res.commerceDup = markDuplicates(commerce, &res.findings)

	r.matchByLinkage(res)
	r.matchByExactName(res)
	r.matchByOverride(res)
	r.classifyDuplicateCollisions(res)
	r.matchByContainment(res)
	r.collectRemainder(res)

	r.logger.Debug("resolution complete",
		zap.Int("pairs", len(res.pairs)),
		zap.Int("findings", len(res.findings)),
	)
	return res.pairs, res.findings
}

// markDuplicates flags every record whose normalized name collides with
// another record of the same listing and collection. Duplicates are excluded
// from name-based matching; picking one of them would be arbitrary.
func markDuplicates(records []domain.ProductRecord, findings *[]domain.Finding) []bool {
	counts := make(map[string]int, len(records))
	for _, rec := range records {
		counts[nameKey(string(rec.Collection), rec.DisplayName)]++
	}
	dup := make([]bool, len(records))
	for i, rec := range records {
		key := nameKey(string(rec.Collection), rec.DisplayName)
		if counts[key] < 2 {
			continue
		}
		dup[i] = true
		*findings = append(*findings, domain.Finding{
			Kind:        domain.FindingDuplicate,
			System:      rec.Source,
			RecordID:    rec.ID,
			DisplayName: rec.DisplayName,
			Detail:      fmt.Sprintf("shares normalized name %q within collection %s", NormalizeName(rec.DisplayName), rec.Collection),
		})
	}
	return dup
}

// matchByLinkage consumes explicit stored cross-references. A commerce
// record claimed by more than one content record (or the reverse) is
// ambiguous for every claimant.
func (r *Resolver) matchByLinkage(res *resolution) {
	commerceIdx := indexByID(res.commerce)
	contentIdx := indexByID(res.content)

	// claims[j] lists content indexes claiming commerce record j, from
	// either side's stored linkage.
	claims := make(map[int][]int)
	claimed := make(map[int]map[int]bool)
	addClaim := func(ci, cj int) {
		if claimed[cj] == nil {
			claimed[cj] = make(map[int]bool)
		}
		if claimed[cj][ci] {
			return
		}
		claimed[cj][ci] = true
		claims[cj] = append(claims[cj], ci)
	}

	for i, rec := range res.content {
		if rec.Linkage == "" {
			continue
		}
		j, ok := commerceIdx[rec.Linkage]
		if !ok {
			res.findings = append(res.findings, domain.Finding{
				Kind:        domain.FindingAsymmetricLink,
				System:      domain.SystemContent,
				RecordID:    rec.ID,
				DisplayName: rec.DisplayName,
				Detail:      fmt.Sprintf("stored linkage %q has no commerce record", rec.Linkage),
			})
			continue
		}
		addClaim(i, j)
	}
	for j, rec := range res.commerce {
		if rec.Linkage == "" {
			continue
		}
		i, ok := contentIdx[rec.Linkage]
		if !ok {
			res.findings = append(res.findings, domain.Finding{
				Kind:        domain.FindingAsymmetricLink,
				System:      domain.SystemCommerce,
				RecordID:    rec.ID,
				DisplayName: rec.DisplayName,
				Detail:      fmt.Sprintf("stored linkage %q has no content record", rec.Linkage),
			})
			continue
		}
		addClaim(i, j)
	}

	// Reverse ambiguity: one content record claiming several commerce
	// records.
	perContent := make(map[int][]int)
	for j := range res.commerce {
		for _, i := range claims[j] {
			perContent[i] = append(perContent[i], j)
		}
	}

	for j := range res.commerce {
		claimants := claims[j]
		if len(claimants) == 0 {
			continue
		}
		if len(claimants) > 1 {
			r.classifyAmbiguousCommerce(res, j, claimants)
			continue
		}
		i := claimants[0]
		if len(perContent[i]) > 1 {
			r.classifyAmbiguousContent(res, i, perContent[i])
			continue
		}
		if res.contentMatched[i] || res.commerceMatched[j] {
			continue
		}
		contentRec, commerceRec := &res.content[i], &res.commerce[j]
		if contentRec.Linkage == "" || commerceRec.Linkage == "" {
			missing := commerceRec
			if commerceRec.Linkage != "" {
				missing = contentRec
			}
			res.findings = append(res.findings, domain.Finding{
				Kind:        domain.FindingAsymmetricLink,
				System:      missing.Source,
				RecordID:    missing.ID,
				DisplayName: missing.DisplayName,
				Detail:      "counterpart stores the linkage, this record does not",
			})
		}
		res.contentMatched[i] = true
		res.commerceMatched[j] = true
		res.pairs = append(res.pairs, domain.MatchPair{
			Content:  contentRec,
			Commerce: commerceRec,
			Class:    domain.MatchLinked,
		})
	}
}

func (r *Resolver) classifyAmbiguousCommerce(res *resolution, j int, claimants []int) {
	if res.commerceMatched[j] {
		return
	}
	candidates := make([]string, 0, len(claimants))
	for _, i := range claimants {
		candidates = append(candidates, res.content[i].ID)
	}
	res.commerceMatched[j] = true
	res.pairs = append(res.pairs, domain.MatchPair{
		Commerce:   &res.commerce[j],
		Class:      domain.MatchAmbiguous,
		Candidates: candidates,
		Reason:     "claimed by multiple content records",
	})
	res.findings = append(res.findings, domain.Finding{
		Kind:        domain.FindingAmbiguous,
		System:      domain.SystemCommerce,
		RecordID:    res.commerce[j].ID,
		DisplayName: res.commerce[j].DisplayName,
		Detail:      "multiple content records claim this product",
		Candidates:  candidates,
	})
	for _, i := range claimants {
		if res.contentMatched[i] {
			continue
		}
		res.contentMatched[i] = true
		res.pairs = append(res.pairs, domain.MatchPair{
			Content:    &res.content[i],
			Class:      domain.MatchAmbiguous,
			Candidates: []string{res.commerce[j].ID},
			Reason:     "linkage contested by another content record",
		})
	}
}

func (r *Resolver) classifyAmbiguousContent(res *resolution, i int, targets []int) {
	if res.contentMatched[i] {
		return
	}
	candidates := make([]string, 0, len(targets))
	for _, j := range targets {
		candidates = append(candidates, res.commerce[j].ID)
	}
	res.contentMatched[i] = true
	res.pairs = append(res.pairs, domain.MatchPair{
		Content:    &res.content[i],
		Class:      domain.MatchAmbiguous,
		Candidates: candidates,
		Reason:     "linked to multiple commerce records",
	})
	res.findings = append(res.findings, domain.Finding{
		Kind:        domain.FindingAmbiguous,
		System:      domain.SystemContent,
		RecordID:    res.content[i].ID,
		DisplayName: res.content[i].DisplayName,
		Detail:      "record is linked to multiple commerce products",
		Candidates:  candidates,
	})
	for _, j := range targets {
		if res.commerceMatched[j] {
			continue
		}
		res.commerceMatched[j] = true
		res.pairs = append(res.pairs, domain.MatchPair{
			Commerce:   &res.commerce[j],
			Class:      domain.MatchAmbiguous,
			Candidates: []string{res.content[i].ID},
			Reason:     "linkage contested",
		})
	}
}

// matchByExactName pairs records whose normalized names are equal within the
// same collection. Duplicates never participate.
func (r *Resolver) matchByExactName(res *resolution) {
	byName := make(map[string]int, len(res.commerce))
	for j, rec := range res.commerce {
		if res.commerceMatched[j] || res.commerceDup[j] {
			continue
		}
		byName[nameKey(string(rec.Collection), rec.DisplayName)] = j
	}
	for i, rec := range res.content {
		if res.contentMatched[i] || res.contentDup[i] {
			continue
		}
		j, ok := byName[nameKey(string(rec.Collection), rec.DisplayName)]
		if !ok || res.commerceMatched[j] {
			continue
		}
		res.contentMatched[i] = true
		res.commerceMatched[j] = true
		res.pairs = append(res.pairs, domain.MatchPair{
			Content:  &res.content[i],
			Commerce: &res.commerce[j],
			Class:    domain.MatchExactName,
		})
	}
}

// matchByOverride applies the policy's manual spelling table. Overrides are
// explicit human decisions, so they cross collection boundaries.
func (r *Resolver) matchByOverride(res *resolution) {
	if len(r.overrides) == 0 {
		return
	}
	byName := make(map[string]int, len(res.commerce))
	for j, rec := range res.commerce {
		if res.commerceMatched[j] {
			continue
		}
		byName[NormalizeName(rec.DisplayName)] = j
	}
	for i, rec := range res.content {
		if res.contentMatched[i] {
			continue
		}
		commerceName, ok := r.overrides[NormalizeName(rec.DisplayName)]
		if !ok {
			continue
		}
		j, ok := byName[commerceName]
		if !ok || res.commerceMatched[j] {
			continue
		}
		res.contentMatched[i] = true
		res.commerceMatched[j] = true
		res.pairs = append(res.pairs, domain.MatchPair{
			Content:  &res.content[i],
			Commerce: &res.commerce[j],
			Class:    domain.MatchOverride,
		})
	}
}

// classifyDuplicateCollisions surfaces records whose normalized name equals
// a duplicate group on the other side. The duplicates cannot be told apart,
// so the colliding record is ambiguous, not unmatched.
func (r *Resolver) classifyDuplicateCollisions(res *resolution) {
	commerceDups := duplicateGroups(res.commerce, res.commerceDup)
	contentDups := duplicateGroups(res.content, res.contentDup)

	for i, rec := range res.content {
		if res.contentMatched[i] || res.contentDup[i] {
			continue
		}
		group, ok := commerceDups[nameKey(string(rec.Collection), rec.DisplayName)]
		if !ok {
			continue
		}
		ids := make([]string, 0, len(group))
		for _, j := range group {
			ids = append(ids, res.commerce[j].ID)
		}
		res.contentMatched[i] = true
		res.pairs = append(res.pairs, domain.MatchPair{
			Content:    &res.content[i],
			Class:      domain.MatchAmbiguous,
			Candidates: ids,
			Reason:     "name collides with duplicate commerce records",
		})
		res.findings = append(res.findings, domain.Finding{
			Kind:        domain.FindingAmbiguous,
			System:      domain.SystemContent,
			RecordID:    rec.ID,
			DisplayName: rec.DisplayName,
			Detail:      "several commerce records share this normalized name",
			Candidates:  ids,
		})
	}
	for j, rec := range res.commerce {
		if res.commerceMatched[j] || res.commerceDup[j] {
			continue
		}
		group, ok := contentDups[nameKey(string(rec.Collection), rec.DisplayName)]
		if !ok {
			continue
		}
		ids := make([]string, 0, len(group))
		for _, i := range group {
			ids = append(ids, res.content[i].ID)
		}
		res.commerceMatched[j] = true
		res.pairs = append(res.pairs, domain.MatchPair{
			Commerce:   &res.commerce[j],
			Class:      domain.MatchAmbiguous,
			Candidates: ids,
			Reason:     "name collides with duplicate content records",
		})
		res.findings = append(res.findings, domain.Finding{
			Kind:        domain.FindingAmbiguous,
			System:      domain.SystemCommerce,
			RecordID:    rec.ID,
			DisplayName: rec.DisplayName,
			Detail:      "several content records share this normalized name",
			Candidates:  ids,
		})
	}
}

func duplicateGroups(records []domain.ProductRecord, dup []bool) map[string][]int {
	groups := make(map[string][]int)
	for i, rec := range records {
		if !dup[i] {
			continue
		}
		key := nameKey(string(rec.Collection), rec.DisplayName)
		groups[key] = append(groups[key], i)
	}
	return groups
}

// matchByContainment pairs records whose normalized name contains the
// other's, within the same collection. These pairs are low confidence and
// report-only: the reconciler never proposes changes for them.
func (r *Resolver) matchByContainment(res *resolution) {
	for i, rec := range res.content {
		if res.contentMatched[i] || res.contentDup[i] {
			continue
		}
		name := NormalizeName(rec.DisplayName)
		if len(name) < minFuzzyLen {
			continue
		}
		var candidates []int
		for j, other := range res.commerce {
			if res.commerceMatched[j] || res.commerceDup[j] || other.Collection != rec.Collection {
				continue
			}
			otherName := NormalizeName(other.DisplayName)
			if len(otherName) < minFuzzyLen {
				continue
			}
			if strings.Contains(name, otherName) || strings.Contains(otherName, name) {
				candidates = append(candidates, j)
			}
		}
		switch len(candidates) {
		case 0:
		case 1:
			j := candidates[0]
			res.contentMatched[i] = true
			res.commerceMatched[j] = true
			res.pairs = append(res.pairs, domain.MatchPair{
				Content:  &res.content[i],
				Commerce: &res.commerce[j],
				Class:    domain.MatchFuzzy,
				Reason:   "names match by containment only",
			})
			res.findings = append(res.findings, domain.Finding{
				Kind:        domain.FindingLowConfidence,
				System:      domain.SystemContent,
				RecordID:    rec.ID,
				DisplayName: rec.DisplayName,
				Detail:      fmt.Sprintf("possible counterpart %q; confirm via the override table", res.commerce[j].DisplayName),
				Candidates:  []string{res.commerce[j].ID},
			})
		default:
			ids := make([]string, 0, len(candidates))
			for _, j := range candidates {
				ids = append(ids, res.commerce[j].ID)
			}
			res.contentMatched[i] = true
			res.pairs = append(res.pairs, domain.MatchPair{
				Content:    &res.content[i],
				Class:      domain.MatchAmbiguous,
				Candidates: ids,
				Reason:     "multiple containment candidates",
			})
			res.findings = append(res.findings, domain.Finding{
				Kind:        domain.FindingAmbiguous,
				System:      domain.SystemContent,
				RecordID:    rec.ID,
				DisplayName: rec.DisplayName,
				Detail:      "several commerce names contain or are contained by this name",
				Candidates:  ids,
			})
			// The candidates are part of the ambiguity. Leaving them
			// unmatched would hand them to the orphan policy.
			for _, j := range candidates {
				res.commerceMatched[j] = true
				res.pairs = append(res.pairs, domain.MatchPair{
					Commerce:   &res.commerce[j],
					Class:      domain.MatchAmbiguous,
					Candidates: []string{rec.ID},
					Reason:     "contested containment candidate",
				})
			}
		}
	}
}

// collectRemainder emits the single-sided pairs so the pairing stays total.
func (r *Resolver) collectRemainder(res *resolution) {
	for i, rec := range res.content {
		if res.contentMatched[i] {
			continue
		}
		class := domain.MatchUnmatched
		reason := "no counterpart found"
		if res.contentDup[i] {
			class = domain.MatchDuplicate
			reason = "duplicate name excluded from matching"
		} else {
			res.findings = append(res.findings, domain.Finding{
				Kind:        domain.FindingUnmatchedContent,
				System:      domain.SystemContent,
				RecordID:    rec.ID,
				DisplayName: rec.DisplayName,
				Detail:      "no commerce counterpart",
			})
		}
		res.contentMatched[i] = true
		res.pairs = append(res.pairs, domain.MatchPair{Content: &res.content[i], Class: class, Reason: reason})
	}
	for j := range res.commerce {
		if res.commerceMatched[j] {
			continue
		}
		class := domain.MatchUnmatched
		reason := "no counterpart found"
		if res.commerceDup[j] {
			class = domain.MatchDuplicate
			reason = "duplicate name excluded from matching"
		}
		res.commerceMatched[j] = true
		res.pairs = append(res.pairs, domain.MatchPair{Commerce: &res.commerce[j], Class: class, Reason: reason})
	}
}

func indexByID(records []domain.ProductRecord) map[string]int {
	idx := make(map[string]int, len(records))
	for i, rec := range records {
		idx[rec.ID] = i
	}
	return idx
}
