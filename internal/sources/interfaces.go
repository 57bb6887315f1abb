package sources

import (
	"context"
	"errors"

	"github.com/veloria/catalogsync/internal/domain"
)

// SourceError categorises adapter failures so the pipeline can decide
// between retry, skip and abort without knowing which backend produced them.
type SourceError interface {
	error
	IsNotFound() bool
	IsTransient() bool
	IsConflict() bool
}

// IsNotFound reports whether any error in the chain marks a missing record.
func IsNotFound(err error) bool {
	var srcErr SourceError
	return errors.As(err, &srcErr) && srcErr.IsNotFound()
}

// IsTransient reports whether any error in the chain is retryable.
func IsTransient(err error) bool {
	var srcErr SourceError
	return errors.As(err, &srcErr) && srcErr.IsTransient()
}

// IsConflict reports whether any error in the chain marks a conflicting write.
func IsConflict(err error) bool {
	var srcErr SourceError
	return errors.As(err, &srcErr) && srcErr.IsConflict()
}

// ContentPatch is a field-level patch against a content document. Set writes
// are idempotent: re-applying the same patch is a no-op on the stored value.
type ContentPatch struct {
	Set   map[string]any
	Unset []string
}

// ContentStore reads and writes product documents in the headless CMS.
type ContentStore interface {
	// ListProducts returns every product record, drafts included, with the
	// draft identifier convention mapped to an explicit record state.
	ListProducts(ctx context.Context) ([]domain.ProductRecord, error)
	PatchProduct(ctx context.Context, id string, patch ContentPatch) error
	DeleteProduct(ctx context.Context, id string) error
	// ImportImage fetches the image at url and uploads it as an asset,
	// returning the asset reference to patch into a document.
	ImportImage(ctx context.Context, url string) (string, error)
}

// CommerceStore reads and writes products in the commerce platform.
type CommerceStore interface {
	// ListProducts drains every listing page before returning. A partial
	// listing would misclassify the missing records as unmatched.
	ListProducts(ctx context.Context) ([]domain.ProductRecord, error)
	// UpdateSKUs rewrites variant SKUs for a product, in size-table order.
	UpdateSKUs(ctx context.Context, productID string, skus []string) error
	// SetContentLink stores the content document id on the product so later
	// runs resolve it through the linkage fast path.
	SetContentLink(ctx context.Context, productID, contentID string) error
	// UpdateVariantPrice rewrites one variant's price. Amounts are minor
	// units and converted to the wire's decimal form by the adapter.
	UpdateVariantPrice(ctx context.Context, productID, variantID string, price domain.Money) error
	// SetInventory toggles sellable availability across the product's
	// variants.
	SetInventory(ctx context.Context, productID string, available bool) error
	UpdateDescription(ctx context.Context, productID, text string) error
	UpdateCollection(ctx context.Context, productID string, group domain.CollectionGroup) error
	DeleteProduct(ctx context.Context, productID string) error
}
