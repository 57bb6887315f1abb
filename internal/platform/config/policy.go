package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/veloria/catalogsync/internal/domain"
	"github.com/veloria/catalogsync/internal/platform/textutil"
)

// Policy is the versioned reconciliation policy: which system owns which
// field, the manual override pairs for known spelling mismatches, the size
// table SKUs are generated from, and the orphan disposition. It replaces the
// per-script constants the sync used to duplicate.
type Policy struct {
	Version int `yaml:"version"`
	// Ownership maps field name to the authoritative system.
	Ownership map[string]string `yaml:"ownership"`
	// Overrides is the explicit list of known cross-store spelling
	// mismatches. It is versioned with the file, never inferred.
	Overrides []OverridePair `yaml:"overrides"`
	// Sizes is the fixed size table, in SKU suffix order.
	Sizes []SizeEntry `yaml:"sizes"`
	// OrphanPolicy selects the disposition for commerce records with no
	// content counterpart: report, delete or reassign.
	OrphanPolicy string `yaml:"orphan_policy"`
	// ReassignCollection is the holding territory used when OrphanPolicy is
	// reassign.
	ReassignCollection string `yaml:"reassign_collection"`
}

// OverridePair declares that two differently spelled titles name the same
// logical product.
type OverridePair struct {
	Content  string `yaml:"content"`
	Commerce string `yaml:"commerce"`
}

// SizeEntry is one sellable size in the fixed size table.
type SizeEntry struct {
	Code string `yaml:"code"`
}

// LoadPolicy reads and validates the policy file.
func LoadPolicy(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("policy: unable to read %s: %w", path, err)
	}
	var policy Policy
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return Policy{}, fmt.Errorf("policy: failed parsing %s: %w", path, err)
	}
	policy.normalize()
	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// DefaultPolicy returns the policy used when no file is present: commerce
// owns stock and price, content owns taxonomy, orphans are reported only.
func DefaultPolicy() Policy {
	policy := Policy{
		Version: 1,
		Ownership: map[string]string{
			string(domain.FieldStock):       string(domain.SystemCommerce),
			string(domain.FieldPrice):       string(domain.SystemCommerce),
			string(domain.FieldMedia):       string(domain.SystemCommerce),
			string(domain.FieldSKU):         string(domain.SystemContent),
			string(domain.FieldDescription): string(domain.SystemContent),
			string(domain.FieldCollection):  string(domain.SystemContent),
		},
		Sizes:        []SizeEntry{{Code: "6ml"}, {Code: "12ml"}, {Code: "30ml"}},
		OrphanPolicy: string(domain.OrphanReport),
	}
	policy.normalize()
	return policy
}

func (p *Policy) normalize() {
	if p.OrphanPolicy == "" {
		p.OrphanPolicy = string(domain.OrphanReport)
	}
	p.OrphanPolicy = strings.ToLower(strings.TrimSpace(p.OrphanPolicy))
	p.ReassignCollection = strings.ToLower(strings.TrimSpace(p.ReassignCollection))
	p.Ownership = textutil.FoldStringMap(p.Ownership)
	for i := range p.Overrides {
		p.Overrides[i].Content = strings.TrimSpace(p.Overrides[i].Content)
		p.Overrides[i].Commerce = strings.TrimSpace(p.Overrides[i].Commerce)
	}
	for i := range p.Sizes {
		p.Sizes[i].Code = strings.ToLower(strings.TrimSpace(p.Sizes[i].Code))
	}
}

// Validate checks internal consistency of the policy.
func (p Policy) Validate() error {
	var invalid []string

	for field, owner := range p.Ownership {
		switch domain.System(owner) {
		case domain.SystemContent, domain.SystemCommerce:
		default:
			invalid = append(invalid, fmt.Sprintf("Ownership[%s]", field))
		}
	}
	switch domain.OrphanAction(p.OrphanPolicy) {
	case domain.OrphanReport, domain.OrphanDelete:
	case domain.OrphanReassign:
		if !domain.CollectionGroup(p.ReassignCollection).IsValid() {
			invalid = append(invalid, "ReassignCollection")
		}
	default:
		invalid = append(invalid, "OrphanPolicy")
	}
	for i, pair := range p.Overrides {
		if pair.Content == "" || pair.Commerce == "" {
			invalid = append(invalid, fmt.Sprintf("Overrides[%d]", i))
		}
	}
	if len(p.Sizes) == 0 {
		invalid = append(invalid, "Sizes")
	}
	seen := make(map[string]struct{}, len(p.Sizes))
	for i, size := range p.Sizes {
		if size.Code == "" {
			invalid = append(invalid, fmt.Sprintf("Sizes[%d]", i))
			continue
		}
		if _, ok := seen[size.Code]; ok {
			invalid = append(invalid, fmt.Sprintf("Sizes[%d]", i))
		}
		seen[size.Code] = struct{}{}
	}

	if len(invalid) > 0 {
		sort.Strings(invalid)
		return &ValidationError{fields: invalid}
	}
	return nil
}

// Owner returns the authoritative system for a field, defaulting unowned
// fields to the content store.
func (p Policy) Owner(field domain.Field) domain.System {
	if owner, ok := p.Ownership[string(field)]; ok {
		return domain.System(owner)
	}
	return domain.SystemContent
}

// OrphanAction returns the configured orphan disposition.
func (p Policy) OrphanAction() domain.OrphanAction {
	return domain.OrphanAction(p.OrphanPolicy)
}

// SizeCodes returns the size table codes in declared order.
func (p Policy) SizeCodes() []string {
	codes := make([]string, 0, len(p.Sizes))
	for _, size := range p.Sizes {
		codes = append(codes, size.Code)
	}
	return codes
}
