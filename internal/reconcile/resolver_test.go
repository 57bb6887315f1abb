package reconcile

import (
	"testing"

	"github.com/veloria/catalogsync/internal/domain"
	"github.com/veloria/catalogsync/internal/platform/config"
)

func resolve(t *testing.T, policy config.Policy, content, commerce []domain.ProductRecord) ([]domain.MatchPair, []domain.Finding) {
	t.Helper()
	pairs, findings := NewResolver(policy, nil).Resolve(content, commerce)

	// Total pairing: every record appears in exactly one pair.
	seen := make(map[string]int)
	for _, pair := range pairs {
		if pair.Content != nil {
			seen["content/"+pair.Content.ID]++
		}
		if pair.Commerce != nil {
			seen["commerce/"+pair.Commerce.ID]++
		}
	}
	for _, rec := range content {
		if seen["content/"+rec.ID] != 1 {
			t.Fatalf("content record %s appears %d times in pairing", rec.ID, seen["content/"+rec.ID])
		}
	}
	for _, rec := range commerce {
		if seen["commerce/"+rec.ID] != 1 {
			t.Fatalf("commerce record %s appears %d times in pairing", rec.ID, seen["commerce/"+rec.ID])
		}
	}
	return pairs, findings
}

func pairByContentID(t *testing.T, pairs []domain.MatchPair, id string) domain.MatchPair {
	t.Helper()
	for _, pair := range pairs {
		if pair.Content != nil && pair.Content.ID == id {
			return pair
		}
	}
	t.Fatalf("no pair holds content record %s", id)
	return domain.MatchPair{}
}

func pairByCommerceID(t *testing.T, pairs []domain.MatchPair, id string) domain.MatchPair {
	t.Helper()
	for _, pair := range pairs {
		if pair.Commerce != nil && pair.Commerce.ID == id {
			return pair
		}
	}
	t.Fatalf("no pair holds commerce record %s", id)
	return domain.MatchPair{}
}

func findingsOfKind(findings []domain.Finding, kind domain.FindingKind) []domain.Finding {
	var out []domain.Finding
	for _, f := range findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func TestResolveLinkageFastPath(t *testing.T) {
	content := []domain.ProductRecord{
		contentRecord("prod-onyx", "Onyx Renamed", domain.CollectionTerra, func(r *domain.ProductRecord) {
			r.Linkage = "gid-11"
		}),
	}
	commerce := []domain.ProductRecord{
		commerceRecord("gid-11", "Completely Different Title", domain.CollectionTerra, func(r *domain.ProductRecord) {
			r.Linkage = "prod-onyx"
		}),
	}

	pairs, findings := resolve(t, config.DefaultPolicy(), content, commerce)
	pair := pairByContentID(t, pairs, "prod-onyx")
	if pair.Class != domain.MatchLinked {
		t.Fatalf("expected linked class, got %s", pair.Class)
	}
	if pair.Commerce == nil || pair.Commerce.ID != "gid-11" {
		t.Fatalf("linkage should beat name matching: %+v", pair)
	}
	if len(findings) != 0 {
		t.Fatalf("symmetric linkage should produce no findings, got %+v", findings)
	}
}

func TestResolveAsymmetricLinkageStillMatches(t *testing.T) {
	content := []domain.ProductRecord{
		contentRecord("prod-onyx", "Onyx", domain.CollectionTerra, func(r *domain.ProductRecord) {
			r.Linkage = "gid-11"
		}),
	}
	commerce := []domain.ProductRecord{
		commerceRecord("gid-11", "Onyx", domain.CollectionTerra),
	}

	pairs, findings := resolve(t, config.DefaultPolicy(), content, commerce)
	if pair := pairByContentID(t, pairs, "prod-onyx"); pair.Class != domain.MatchLinked {
		t.Fatalf("expected linked class, got %s", pair.Class)
	}
	asym := findingsOfKind(findings, domain.FindingAsymmetricLink)
	if len(asym) != 1 || asym[0].RecordID != "gid-11" {
		t.Fatalf("expected asymmetric-linkage finding for gid-11, got %+v", asym)
	}
}

func TestResolveDanglingLinkageFallsBackToName(t *testing.T) {
	content := []domain.ProductRecord{
		contentRecord("prod-onyx", "Onyx", domain.CollectionTerra, func(r *domain.ProductRecord) {
			r.Linkage = "gid-gone"
		}),
	}
	commerce := []domain.ProductRecord{
		commerceRecord("gid-11", "Onyx", domain.CollectionTerra),
	}

	pairs, findings := resolve(t, config.DefaultPolicy(), content, commerce)
	if pair := pairByContentID(t, pairs, "prod-onyx"); pair.Class != domain.MatchExactName {
		t.Fatalf("dangling linkage should fall back to name matching, got %s", pair.Class)
	}
	if len(findingsOfKind(findings, domain.FindingAsymmetricLink)) != 1 {
		t.Fatal("expected a finding for the dangling linkage")
	}
}

func TestResolveExactNameFoldsDiacritics(t *testing.T) {
	content := []domain.ProductRecord{
		contentRecord("prod-creme", "Crème Brûlée", domain.CollectionAurum),
	}
	commerce := []domain.ProductRecord{
		commerceRecord("gid-20", "CREME BRULEE", domain.CollectionAurum),
	}

	pairs, _ := resolve(t, config.DefaultPolicy(), content, commerce)
	if pair := pairByContentID(t, pairs, "prod-creme"); pair.Class != domain.MatchExactName {
		t.Fatalf("accented and folded spellings should match, got %s", pair.Class)
	}
}

func TestResolveNameMatchIsCollectionScoped(t *testing.T) {
	content := []domain.ProductRecord{
		contentRecord("prod-onyx", "Onyx", domain.CollectionTerra),
	}
	commerce := []domain.ProductRecord{
		commerceRecord("gid-11", "Onyx", domain.CollectionMarine),
	}

	pairs, _ := resolve(t, config.DefaultPolicy(), content, commerce)
	if pair := pairByContentID(t, pairs, "prod-onyx"); pair.Class == domain.MatchExactName {
		t.Fatal("name matching must not cross collection groups")
	}
}

func TestResolveDuplicatesExcludedFromMatching(t *testing.T) {
	content := []domain.ProductRecord{
		contentRecord("prod-a", "Onyx", domain.CollectionTerra),
		contentRecord("prod-b", "onyx", domain.CollectionTerra),
	}
	commerce := []domain.ProductRecord{
		commerceRecord("gid-11", "Onyx", domain.CollectionTerra),
	}

	pairs, findings := resolve(t, config.DefaultPolicy(), content, commerce)
	for _, id := range []string{"prod-a", "prod-b"} {
		if pair := pairByContentID(t, pairs, id); pair.Class != domain.MatchDuplicate {
			t.Fatalf("duplicate %s should be excluded, got class %s", id, pair.Class)
		}
	}
	if len(findingsOfKind(findings, domain.FindingDuplicate)) != 2 {
		t.Fatalf("expected duplicate findings for both records, got %+v", findings)
	}
}

func TestResolveContestedLinkageIsAmbiguous(t *testing.T) {
	content := []domain.ProductRecord{
		contentRecord("prod-a", "Onyx", domain.CollectionTerra, func(r *domain.ProductRecord) {
			r.Linkage = "gid-11"
		}),
		contentRecord("prod-b", "Onyx Noir", domain.CollectionTerra, func(r *domain.ProductRecord) {
			r.Linkage = "gid-11"
		}),
	}
	commerce := []domain.ProductRecord{
		commerceRecord("gid-11", "Onyx", domain.CollectionTerra),
	}

	pairs, findings := resolve(t, config.DefaultPolicy(), content, commerce)
	for _, pair := range pairs {
		if pair.Class.Actionable() {
			t.Fatalf("contested linkage must never be resolved by an arbitrary pick: %+v", pair)
		}
	}
	ambiguous := findingsOfKind(findings, domain.FindingAmbiguous)
	if len(ambiguous) != 1 || len(ambiguous[0].Candidates) != 2 {
		t.Fatalf("expected one ambiguous finding listing both claimants, got %+v", ambiguous)
	}
}

func TestResolveOverrideTable(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.Overrides = []config.OverridePair{
		{Content: "Bois de Santal", Commerce: "Sandalwood"},
	}
	content := []domain.ProductRecord{
		contentRecord("prod-bois", "Bois de Santal", domain.CollectionTerra),
	}
	commerce := []domain.ProductRecord{
		commerceRecord("gid-30", "Sandalwood", domain.CollectionTerra),
	}

	pairs, _ := resolve(t, policy, content, commerce)
	pair := pairByContentID(t, pairs, "prod-bois")
	if pair.Class != domain.MatchOverride {
		t.Fatalf("expected override class, got %s", pair.Class)
	}
	if pair.Commerce == nil || pair.Commerce.ID != "gid-30" {
		t.Fatalf("override should pair the declared spellings: %+v", pair)
	}
}

func TestResolveContainmentIsLowConfidence(t *testing.T) {
	content := []domain.ProductRecord{
		contentRecord("prod-onyx", "Onyx Noir Extrait", domain.CollectionTerra),
	}
	commerce := []domain.ProductRecord{
		commerceRecord("gid-11", "Onyx Noir", domain.CollectionTerra),
	}

	pairs, findings := resolve(t, config.DefaultPolicy(), content, commerce)
	pair := pairByContentID(t, pairs, "prod-onyx")
	if pair.Class != domain.MatchFuzzy {
		t.Fatalf("expected fuzzy class, got %s", pair.Class)
	}
	if pair.Class.Actionable() {
		t.Fatal("fuzzy matches must stay report-only")
	}
	if len(findingsOfKind(findings, domain.FindingLowConfidence)) != 1 {
		t.Fatalf("expected a low-confidence finding, got %+v", findings)
	}
}

func TestResolveAmbiguousContainmentCoversCandidates(t *testing.T) {
	content := []domain.ProductRecord{
		contentRecord("prod-onyx", "Onyx Noir Extrait Onyx", domain.CollectionTerra),
	}
	commerce := []domain.ProductRecord{
		commerceRecord("gid-1", "Onyx Noir", domain.CollectionTerra),
		commerceRecord("gid-2", "Extrait Onyx", domain.CollectionTerra),
	}

	pairs, findings := resolve(t, config.DefaultPolicy(), content, commerce)
	if pair := pairByContentID(t, pairs, "prod-onyx"); pair.Class != domain.MatchAmbiguous {
		t.Fatalf("expected ambiguous class, got %s", pair.Class)
	}
	for _, id := range []string{"gid-1", "gid-2"} {
		pair := pairByCommerceID(t, pairs, id)
		if pair.Class != domain.MatchAmbiguous {
			t.Fatalf("candidate %s must share the ambiguity, got class %s", id, pair.Class)
		}
	}
	for _, pair := range pairs {
		if pair.Class.Actionable() {
			t.Fatalf("ambiguity must never be resolved by an arbitrary pick: %+v", pair)
		}
	}
	ambiguous := findingsOfKind(findings, domain.FindingAmbiguous)
	if len(ambiguous) != 1 || len(ambiguous[0].Candidates) != 2 {
		t.Fatalf("expected one ambiguous finding listing both candidates, got %+v", ambiguous)
	}
}

func TestResolveDuplicateCollisionIsAmbiguous(t *testing.T) {
	content := []domain.ProductRecord{
		contentRecord("prod-onyx", "Onyx", domain.CollectionTerra),
	}
	commerce := []domain.ProductRecord{
		commerceRecord("gid-1", "Onyx", domain.CollectionTerra),
		commerceRecord("gid-2", "onyx", domain.CollectionTerra),
	}

	pairs, findings := resolve(t, config.DefaultPolicy(), content, commerce)
	pair := pairByContentID(t, pairs, "prod-onyx")
	if pair.Class != domain.MatchAmbiguous {
		t.Fatalf("a name shared by duplicates is ambiguous, got class %s", pair.Class)
	}
	if len(pair.Candidates) != 2 {
		t.Fatalf("expected both duplicates as candidates, got %+v", pair.Candidates)
	}
	for _, id := range []string{"gid-1", "gid-2"} {
		if pair := pairByCommerceID(t, pairs, id); pair.Class != domain.MatchDuplicate {
			t.Fatalf("duplicate %s keeps its class, got %s", id, pair.Class)
		}
	}
	ambiguous := findingsOfKind(findings, domain.FindingAmbiguous)
	if len(ambiguous) != 1 || ambiguous[0].RecordID != "prod-onyx" {
		t.Fatalf("expected one ambiguous finding for the colliding record, got %+v", ambiguous)
	}
}

func TestResolveUnmatchedRemainder(t *testing.T) {
	content := []domain.ProductRecord{
		contentRecord("prod-solo", "Heliotrope", domain.CollectionNoctis),
	}
	commerce := []domain.ProductRecord{
		commerceRecord("gid-99", "Vetiver", domain.CollectionMarine),
	}

	pairs, findings := resolve(t, config.DefaultPolicy(), content, commerce)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 single-sided pairs, got %d", len(pairs))
	}
	for _, pair := range pairs {
		if pair.Class != domain.MatchUnmatched {
			t.Fatalf("expected unmatched class, got %s", pair.Class)
		}
	}
	if len(findingsOfKind(findings, domain.FindingUnmatchedContent)) != 1 {
		t.Fatalf("expected an unmatched-content finding, got %+v", findings)
	}
}
