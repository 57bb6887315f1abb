package domain

import "time"

// System identifies which store a record or a proposed mutation belongs to.
type System string

const (
	// SystemContent is the headless CMS holding descriptive product data.
	SystemContent System = "content"
	// SystemCommerce is the commerce backend holding price/inventory data.
	SystemCommerce System = "commerce"
)

// CollectionGroup is the fixed territory a product belongs to.
type CollectionGroup string

const (
	CollectionTerra  CollectionGroup = "terra"
	CollectionMarine CollectionGroup = "marine"
	CollectionAurum  CollectionGroup = "aurum"
	CollectionNoctis CollectionGroup = "noctis"
	// CollectionUnknown marks records whose territory could not be mapped.
	CollectionUnknown CollectionGroup = ""
)

// Collections lists every valid territory in catalogue order.
func Collections() []CollectionGroup {
	return []CollectionGroup{CollectionTerra, CollectionMarine, CollectionAurum, CollectionNoctis}
}

// IsValid reports whether the group names a known territory.
func (g CollectionGroup) IsValid() bool {
	switch g {
	case CollectionTerra, CollectionMarine, CollectionAurum, CollectionNoctis:
		return true
	default:
		return false
	}
}

// RecordState captures the lifecycle state of a product record.
type RecordState string

const (
	// RecordStateDraft is an unpublished revision of a logical product.
	RecordStateDraft RecordState = "draft"
	// RecordStatePublished is the live revision of a logical product.
	RecordStatePublished RecordState = "published"
)

// MediaState describes the presence of a record's primary image.
type MediaState string

const (
	MediaPresent MediaState = "present"
	MediaMissing MediaState = "missing"
	// MediaPlaceholder is a non-authoritative stand-in image that may be
	// overwritten by a synced image.
	MediaPlaceholder MediaState = "placeholder"
)

// MediaRef points at a record's primary image, when one exists.
type MediaRef struct {
	State    MediaState
	AssetRef string
	URL      string
}

// Money is a currency amount in minor units. Amounts are compared exactly,
// never with an epsilon.
type Money struct {
	Amount   int64
	Currency string
}

// Equal reports exact equality of amount and currency.
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// Variant is one sellable size of a product.
type Variant struct {
	SizeCode  string
	SKU       string
	Price     Money
	Available bool
	// ForeignID is the commerce-side variant identifier when known.
	ForeignID string
}

// Identity carries the keys a record may be resolved by. None of them is
// guaranteed unique across sources until resolution assigns the record to a
// pair.
type Identity struct {
	// Key is the stable internal identifier within the owning store.
	Key string
	// DisplayName is the human title.
	DisplayName string
	// ForeignKey is the identifier of the counterpart record in the other
	// store, empty until linked.
	ForeignKey string
}

// ProductRecord is the canonical, source-agnostic product representation
// both adapters map into.
type ProductRecord struct {
	Source      System
	ID          string
	Collection  CollectionGroup
	DisplayName string
	// LegacyName is a superseded name retained for continuity. It is never
	// treated as a duplicate of the current name.
	LegacyName        string
	LegacyNameVisible bool
	Description       string
	// StockStatus mirrors availability. It is authoritative only on the
	// commerce side; the content side holds a cache of it.
	StockStatus bool
	Media       MediaRef
	// SKUSet holds one SKU per sellable size, regenerable from Collection,
	// DisplayName and the size table.
	SKUSet   []string
	Variants []Variant
	// Linkage is the stored cross-reference into the other store.
	Linkage   string
	State     RecordState
	UpdatedAt time.Time
}

// Identity returns the resolvable keys for the record.
func (r ProductRecord) Identity() Identity {
	return Identity{Key: r.ID, DisplayName: r.DisplayName, ForeignKey: r.Linkage}
}

// HasPrimaryImage reports whether the record carries a curated image that
// must never be overwritten by a sync.
func (r ProductRecord) HasPrimaryImage() bool {
	return r.Media.State == MediaPresent && r.Media.AssetRef != ""
}
