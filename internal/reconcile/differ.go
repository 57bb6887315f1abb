package reconcile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/veloria/catalogsync/internal/domain"
	"github.com/veloria/catalogsync/internal/platform/config"
)

// Differ computes the field-level changes that would converge a matched
// pair, under the policy's ownership table. Diffing is pure: the same pair
// always yields the same changes, and a converged pair yields none.
type Differ struct {
	policy config.Policy
	sizes  []string
}

// NewDiffer constructs a Differ from the active policy.
func NewDiffer(policy config.Policy) *Differ {
	return &Differ{policy: policy, sizes: policy.SizeCodes()}
}

// Diff proposes changes for one pair. Non-actionable pairs produce nothing:
// fuzzy matches are report-only and ambiguity is never written through.
func (d *Differ) Diff(pair domain.MatchPair) ([]domain.FieldChange, []domain.Finding) {
	if !pair.Class.Actionable() || pair.Content == nil || pair.Commerce == nil {
		return nil, nil
	}
	content, commerce := pair.Content, pair.Commerce

	var changes []domain.FieldChange
	var findings []domain.Finding

	changes = append(changes, d.diffLinkage(content, commerce)...)
	changes = append(changes, d.diffStock(content, commerce)...)

	skuChanges, skuFindings := d.diffSKUs(content, commerce)
	changes = append(changes, skuChanges...)
	findings = append(findings, skuFindings...)

	changes = append(changes, d.diffMedia(content, commerce)...)
	changes = append(changes, d.diffPrice(content, commerce)...)
	changes = append(changes, d.diffDescription(content, commerce)...)
	changes = append(changes, d.diffCollection(content, commerce)...)
	return changes, findings
}

// diffLinkage repairs missing or stale cross-references on both sides. A
// resolved pair is the ground truth the stored linkage must reflect.
func (d *Differ) diffLinkage(content, commerce *domain.ProductRecord) []domain.FieldChange {
	var changes []domain.FieldChange
	if content.Linkage != commerce.ID {
		changes = append(changes, domain.FieldChange{
			Target:      domain.SystemContent,
			RecordID:    content.ID,
			DisplayName: content.DisplayName,
			Field:       domain.FieldLinkage,
			Old:         content.Linkage,
			New:         commerce.ID,
		})
	}
	if commerce.Linkage != content.ID {
		changes = append(changes, domain.FieldChange{
			Target:      domain.SystemCommerce,
			RecordID:    commerce.ID,
			DisplayName: commerce.DisplayName,
			Field:       domain.FieldLinkage,
			Old:         commerce.Linkage,
			New:         content.ID,
		})
	}
	return changes
}

func (d *Differ) diffStock(content, commerce *domain.ProductRecord) []domain.FieldChange {
	if content.StockStatus == commerce.StockStatus {
		return nil
	}
	if d.policy.Owner(domain.FieldStock) == domain.SystemCommerce {
		return []domain.FieldChange{{
			Target:      domain.SystemContent,
			RecordID:    content.ID,
			DisplayName: content.DisplayName,
			Field:       domain.FieldStock,
			Old:         strconv.FormatBool(content.StockStatus),
			New:         strconv.FormatBool(commerce.StockStatus),
		}}
	}
	return []domain.FieldChange{{
		Target:      domain.SystemCommerce,
		RecordID:    commerce.ID,
		DisplayName: commerce.DisplayName,
		Field:       domain.FieldStock,
		Old:         strconv.FormatBool(commerce.StockStatus),
		New:         strconv.FormatBool(content.StockStatus),
	}}
}

// diffSKUs recomputes the canonical SKU set and proposes rewrites for any
// side holding a different one. A malformed canonical SKU aborts only this
// record's SKU writes and surfaces a finding.
func (d *Differ) diffSKUs(content, commerce *domain.ProductRecord) ([]domain.FieldChange, []domain.Finding) {
	if d.policy.Owner(domain.FieldSKU) == domain.SystemCommerce {
		// Commerce SKUs are authoritative as-is; mirror them into the
		// content record when stale.
		if equalStrings(content.SKUSet, commerce.SKUSet) {
			return nil, nil
		}
		return []domain.FieldChange{{
			Target:      domain.SystemContent,
			RecordID:    content.ID,
			DisplayName: content.DisplayName,
			Field:       domain.FieldSKU,
			Old:         strings.Join(content.SKUSet, ","),
			New:         strings.Join(commerce.SKUSet, ","),
		}}, nil
	}

	expected := GenerateSKUSet(content.Collection, content.DisplayName, d.sizes)
	for _, sku := range expected {
		if !ValidSKU(sku) {
			return nil, []domain.Finding{{
				Kind:        domain.FindingInvalidSKU,
				System:      domain.SystemContent,
				RecordID:    content.ID,
				DisplayName: content.DisplayName,
				Detail:      fmt.Sprintf("derived SKU %q is malformed; no SKU writes proposed", sku),
			}}
		}
	}

	var changes []domain.FieldChange
	if !equalStrings(content.SKUSet, expected) {
		changes = append(changes, domain.FieldChange{
			Target:      domain.SystemContent,
			RecordID:    content.ID,
			DisplayName: content.DisplayName,
			Field:       domain.FieldSKU,
			Old:         strings.Join(content.SKUSet, ","),
			New:         strings.Join(expected, ","),
		})
	}
	if !equalStrings(commerce.SKUSet, expected) {
		changes = append(changes, domain.FieldChange{
			Target:      domain.SystemCommerce,
			RecordID:    commerce.ID,
			DisplayName: commerce.DisplayName,
			Field:       domain.FieldSKU,
			Old:         strings.Join(commerce.SKUSet, ","),
			New:         strings.Join(expected, ","),
		})
	}
	return changes, nil
}

// diffMedia proposes copying the commerce image only when the content side
// has no authoritative image of its own. An existing content image is never
// overwritten.
func (d *Differ) diffMedia(content, commerce *domain.ProductRecord) []domain.FieldChange {
	if content.HasPrimaryImage() {
		return nil
	}
	if commerce.Media.State != domain.MediaPresent || commerce.Media.URL == "" {
		return nil
	}
	return []domain.FieldChange{{
		Target:      domain.SystemContent,
		RecordID:    content.ID,
		DisplayName: content.DisplayName,
		Field:       domain.FieldMedia,
		Old:         string(content.Media.State),
		New:         commerce.Media.URL,
	}}
}

// diffPrice compares minor-unit amounts exactly. The content record carries
// one cached price, mirrored from the commerce reference size (the first
// size-table entry).
func (d *Differ) diffPrice(content, commerce *domain.ProductRecord) []domain.FieldChange {
	contentPrice, okContent := firstPrice(content)
	reference, okCommerce := referenceVariant(commerce, d.sizes)
	if !okCommerce {
		return nil
	}
	if !okContent {
		// A content record with no cached price is seeded from the
		// commerce owner. A missing price is never pushed the other
		// way; there is nothing authoritative to push.
		if d.policy.Owner(domain.FieldPrice) != domain.SystemCommerce || reference.Price.Amount <= 0 {
			return nil
		}
		return []domain.FieldChange{{
			Target:      domain.SystemContent,
			RecordID:    content.ID,
			DisplayName: content.DisplayName,
			Field:       domain.FieldPrice,
			Old:         "",
			New:         formatMoney(reference.Price),
		}}
	}
	if contentPrice.Equal(reference.Price) {
		return nil
	}
	if d.policy.Owner(domain.FieldPrice) == domain.SystemCommerce {
		return []domain.FieldChange{{
			Target:      domain.SystemContent,
			RecordID:    content.ID,
			DisplayName: content.DisplayName,
			Field:       domain.FieldPrice,
			Old:         formatMoney(contentPrice),
			New:         formatMoney(reference.Price),
		}}
	}
	want := domain.Money{Amount: contentPrice.Amount, Currency: reference.Price.Currency}
	if contentPrice.Currency != "" {
		want.Currency = contentPrice.Currency
	}
	return []domain.FieldChange{{
		Target:      domain.SystemCommerce,
		RecordID:    commerce.ID,
		DisplayName: commerce.DisplayName,
		VariantID:   reference.ForeignID,
		Field:       domain.FieldPrice,
		Old:         formatMoney(reference.Price),
		New:         formatMoney(want),
	}}
}

func (d *Differ) diffDescription(content, commerce *domain.ProductRecord) []domain.FieldChange {
	contentText := strings.TrimSpace(content.Description)
	commerceText := strings.TrimSpace(commerce.Description)
	if contentText == commerceText {
		return nil
	}
	if d.policy.Owner(domain.FieldDescription) == domain.SystemCommerce {
		return []domain.FieldChange{{
			Target:      domain.SystemContent,
			RecordID:    content.ID,
			DisplayName: content.DisplayName,
			Field:       domain.FieldDescription,
			Old:         contentText,
			New:         commerceText,
		}}
	}
	if contentText == "" {
		// Nothing authoritative to push; an empty description never
		// erases the counterpart's copy.
		return nil
	}
	return []domain.FieldChange{{
		Target:      domain.SystemCommerce,
		RecordID:    commerce.ID,
		DisplayName: commerce.DisplayName,
		Field:       domain.FieldDescription,
		Old:         commerceText,
		New:         contentText,
	}}
}

func (d *Differ) diffCollection(content, commerce *domain.ProductRecord) []domain.FieldChange {
	if content.Collection == commerce.Collection {
		return nil
	}
	if d.policy.Owner(domain.FieldCollection) == domain.SystemCommerce {
		if !commerce.Collection.IsValid() {
			return nil
		}
		return []domain.FieldChange{{
			Target:      domain.SystemContent,
			RecordID:    content.ID,
			DisplayName: content.DisplayName,
			Field:       domain.FieldCollection,
			Old:         string(content.Collection),
			New:         string(commerce.Collection),
		}}
	}
	if !content.Collection.IsValid() {
		return nil
	}
	return []domain.FieldChange{{
		Target:      domain.SystemCommerce,
		RecordID:    commerce.ID,
		DisplayName: commerce.DisplayName,
		Field:       domain.FieldCollection,
		Old:         string(commerce.Collection),
		New:         string(content.Collection),
	}}
}

func firstPrice(record *domain.ProductRecord) (domain.Money, bool) {
	if len(record.Variants) == 0 {
		return domain.Money{}, false
	}
	price := record.Variants[0].Price
	return price, price.Amount > 0
}

// referenceVariant picks the commerce variant the content price mirrors:
// the first size-table entry, falling back to the first variant.
func referenceVariant(record *domain.ProductRecord, sizes []string) (domain.Variant, bool) {
	if len(record.Variants) == 0 {
		return domain.Variant{}, false
	}
	if len(sizes) > 0 {
		for _, v := range record.Variants {
			if v.SizeCode == sizes[0] {
				return v, true
			}
		}
	}
	return record.Variants[0], true
}

func formatMoney(m domain.Money) string {
	return strconv.FormatInt(m.Amount, 10) + " " + m.Currency
}

// parseMoney reverses formatMoney when the applier routes a price change.
func parseMoney(s string) (domain.Money, error) {
	amountText, currency, ok := strings.Cut(s, " ")
	if !ok {
		return domain.Money{}, fmt.Errorf("malformed money value %q", s)
	}
	amount, err := strconv.ParseInt(amountText, 10, 64)
	if err != nil {
		return domain.Money{}, fmt.Errorf("malformed money amount %q", s)
	}
	return domain.Money{Amount: amount, Currency: currency}, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
