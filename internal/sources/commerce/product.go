package commerce

import (
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/veloria/catalogsync/internal/domain"
)

// metafieldNamespace scopes the cross-reference metafields this tool owns on
// commerce products.
const (
	metafieldNamespace  = "veloria"
	metafieldContentKey = "contentId"
	metafieldLegacyKey  = "legacyTitle"
)

// htmlStripper reduces rich product descriptions to plain text so both
// stores compare the same representation.
var htmlStripper = bluemonday.StrictPolicy()

type productNode struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Status          string         `json:"status"`
	ProductType     string         `json:"productType"`
	DescriptionHTML string         `json:"descriptionHtml"`
	FeaturedImage   *imageNode     `json:"featuredImage"`
	ContentLink     *metafieldNode `json:"contentLink"`
	LegacyTitle     *metafieldNode `json:"legacyTitle"`
	Variants        struct {
		Nodes []variantNode `json:"nodes"`
	} `json:"variants"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type imageNode struct {
	URL string `json:"url"`
}

type metafieldNode struct {
	Value string `json:"value"`
}

type variantNode struct {
	ID               string `json:"id"`
	SKU              string `json:"sku"`
	Title            string `json:"title"`
	Price            string `json:"price"`
	AvailableForSale bool   `json:"availableForSale"`
}

func (n productNode) toRecord(currency string) (domain.ProductRecord, error) {
	record := domain.ProductRecord{
		Source:      domain.SystemCommerce,
		ID:          n.ID,
		Collection:  domain.CollectionGroup(strings.ToLower(strings.TrimSpace(n.ProductType))),
		DisplayName: strings.TrimSpace(n.Title),
		Description: strings.TrimSpace(htmlStripper.Sanitize(n.DescriptionHTML)),
		State:       domain.RecordStatePublished,
		UpdatedAt:   n.UpdatedAt,
	}
	// Anything not live on the storefront behaves as an unpublished
	// revision for matching purposes.
	if !strings.EqualFold(n.Status, "ACTIVE") {
		record.State = domain.RecordStateDraft
	}
	if n.FeaturedImage != nil && n.FeaturedImage.URL != "" {
		record.Media = domain.MediaRef{State: domain.MediaPresent, URL: n.FeaturedImage.URL}
	} else {
		record.Media = domain.MediaRef{State: domain.MediaMissing}
	}
	if n.ContentLink != nil {
		record.Linkage = strings.TrimSpace(n.ContentLink.Value)
	}
	if n.LegacyTitle != nil && n.LegacyTitle.Value != "" {
		record.LegacyName = n.LegacyTitle.Value
		record.LegacyNameVisible = true
	}

	for _, vn := range n.Variants.Nodes {
		amount, err := parseMinorUnits(vn.Price)
		if err != nil {
			return domain.ProductRecord{}, fmt.Errorf("commerce: product %s variant %s: %w", n.ID, vn.ID, err)
		}
		variant := domain.Variant{
			SizeCode:  strings.ToLower(strings.TrimSpace(vn.Title)),
			SKU:       vn.SKU,
			Price:     domain.Money{Amount: amount, Currency: currency},
			Available: vn.AvailableForSale,
			ForeignID: vn.ID,
		}
		record.Variants = append(record.Variants, variant)
		if vn.SKU != "" {
			record.SKUSet = append(record.SKUSet, vn.SKU)
		}
		if vn.AvailableForSale {
			record.StockStatus = true
		}
	}
	return record, nil
}

// parseMinorUnits converts a decimal money string to minor units without
// going through floating point.
func parseMinorUnits(price string) (int64, error) {
	price = strings.TrimSpace(price)
	if price == "" {
		return 0, nil
	}
	whole, frac, _ := strings.Cut(price, ".")
	switch len(frac) {
	case 0:
		frac = "00"
	case 1:
		frac += "0"
	case 2:
	default:
		return 0, fmt.Errorf("unsupported price precision %q", price)
	}
	var amount int64
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("malformed price %q", price)
		}
		amount = amount*10 + int64(r-'0')
	}
	return amount, nil
}
