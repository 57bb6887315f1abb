package content

import (
	"strings"
	"time"

	"github.com/veloria/catalogsync/internal/domain"
)

// draftPrefix marks the unpublished revision of a logical document in the
// content store. The prefix is an identifier convention on the wire only;
// records expose it as an explicit state instead.
const draftPrefix = "drafts."

// productDocument is the wire shape of a product document.
type productDocument struct {
	ID                 string        `json:"_id"`
	Type               string        `json:"_type"`
	Title              string        `json:"title"`
	LegacyTitle        string        `json:"legacyTitle,omitempty"`
	ShowLegacyTitle    bool          `json:"showLegacyTitle,omitempty"`
	Collection         string        `json:"collection"`
	Description        string        `json:"description,omitempty"`
	InStock            bool          `json:"inStock"`
	PriceCents         int64         `json:"priceCents,omitempty"`
	PriceCurrency      string        `json:"priceCurrency,omitempty"`
	SKUs               []string      `json:"skus,omitempty"`
	Image              *imageField   `json:"image,omitempty"`
	ImagePlaceholder   bool          `json:"imagePlaceholder,omitempty"`
	ShopifyProductID   string        `json:"shopifyProductId,omitempty"`
	UpdatedAt          time.Time     `json:"_updatedAt"`
}

type imageField struct {
	Asset assetRef `json:"asset"`
}

type assetRef struct {
	Ref string `json:"_ref"`
}

// logicalID strips the draft prefix, yielding the identity shared by both
// revisions of a document.
func logicalID(id string) string {
	return strings.TrimPrefix(id, draftPrefix)
}

func isDraftID(id string) bool {
	return strings.HasPrefix(id, draftPrefix)
}

func (d productDocument) toRecord() domain.ProductRecord {
	record := domain.ProductRecord{
		Source:            domain.SystemContent,
		ID:                logicalID(d.ID),
		Collection:        domain.CollectionGroup(strings.ToLower(strings.TrimSpace(d.Collection))),
		DisplayName:       strings.TrimSpace(d.Title),
		LegacyName:        strings.TrimSpace(d.LegacyTitle),
		LegacyNameVisible: d.ShowLegacyTitle,
		Description:       d.Description,
		StockStatus:       d.InStock,
		SKUSet:            append([]string(nil), d.SKUs...),
		Linkage:           strings.TrimSpace(d.ShopifyProductID),
		State:             domain.RecordStatePublished,
		UpdatedAt:         d.UpdatedAt,
	}
	if isDraftID(d.ID) {
		record.State = domain.RecordStateDraft
	}
	if d.PriceCents > 0 {
		currency := d.PriceCurrency
		if currency == "" {
			currency = "EUR"
		}
		record.Variants = []domain.Variant{{Price: domain.Money{Amount: d.PriceCents, Currency: currency}}}
	}
	switch {
	case d.Image != nil && d.Image.Asset.Ref != "" && d.ImagePlaceholder:
		record.Media = domain.MediaRef{State: domain.MediaPlaceholder, AssetRef: d.Image.Asset.Ref}
	case d.Image != nil && d.Image.Asset.Ref != "":
		record.Media = domain.MediaRef{State: domain.MediaPresent, AssetRef: d.Image.Asset.Ref}
	default:
		record.Media = domain.MediaRef{State: domain.MediaMissing}
	}
	return record
}

// collapseRevisions folds draft and published revisions of the same logical
// document into one record. Publishing is a state transition, never a new
// identity, so the published revision wins when both exist.
func collapseRevisions(docs []productDocument) []domain.ProductRecord {
	published := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		if !isDraftID(doc.ID) {
			published[doc.ID] = struct{}{}
		}
	}

	records := make([]domain.ProductRecord, 0, len(docs))
	for _, doc := range docs {
		if isDraftID(doc.ID) {
			if _, ok := published[logicalID(doc.ID)]; ok {
				continue
			}
		}
		records = append(records, doc.toRecord())
	}
	return records
}
