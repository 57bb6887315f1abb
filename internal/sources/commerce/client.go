package commerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/veloria/catalogsync/internal/domain"
	"github.com/veloria/catalogsync/internal/platform/httpx"
)

const (
	defaultPageSize     = 100
	defaultThrottleWait = 500 * time.Millisecond
	maxThrottleRetries  = 5
)

// Client reads and mutates products through the commerce GraphQL admin API.
// It implements sources.CommerceStore.
type Client struct {
	http     *httpx.Client
	path     string
	pageSize int
	logger   *zap.Logger
}

// Deps lists the dependencies of a Client.
type Deps struct {
	HTTP       *httpx.Client
	APIVersion string
	PageSize   int
	Logger     *zap.Logger
}

// NewClient constructs a Client from its dependencies.
func NewClient(deps Deps) (*Client, error) {
	if deps.HTTP == nil {
		return nil, errors.New("commerce: http client is required")
	}
	if deps.APIVersion == "" {
		return nil, errors.New("commerce: api version is required")
	}
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:     deps.HTTP,
		path:     fmt.Sprintf("/admin/api/%s/graphql.json", deps.APIVersion),
		pageSize: pageSize,
		logger:   logger,
	}, nil
}

type graphRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// execute runs one GraphQL operation and decodes its data payload into out.
// Throttled operations are retried with backoff; the HTTP layer already
// retries transport-level failures.
func (c *Client) execute(ctx context.Context, op, query string, variables map[string]any, out any) error {
	attempt := 0
	run := func() error {
		attempt++
		var resp graphResponse
		if err := c.http.DoJSON(ctx, http.MethodPost, c.path, graphRequest{Query: query, Variables: variables}, &resp); err != nil {
			return backoff.Permanent(err)
		}
		if len(resp.Errors) > 0 {
			gerr := newGraphError(op, resp.Errors)
			if gerr.IsTransient() {
				c.logger.Warn("commerce api throttled",
					zap.String("op", op),
					zap.Int("attempt", attempt),
				)
				return gerr
			}
			return backoff.Permanent(gerr)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("commerce: %s: decode data: %w", op, err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = defaultThrottleWait
	return backoff.Retry(run, backoff.WithContext(backoff.WithMaxRetries(policy, maxThrottleRetries), ctx))
}

const listProductsQuery = `
query ListProducts($first: Int!, $cursor: String) {
  shop { currencyCode }
  products(first: $first, after: $cursor) {
    pageInfo { hasNextPage endCursor }
    nodes {
      id
      title
      status
      productType
      descriptionHtml
      featuredImage { url }
      contentLink: metafield(namespace: "veloria", key: "contentId") { value }
      legacyTitle: metafield(namespace: "veloria", key: "legacyTitle") { value }
      variants(first: 20) {
        nodes { id sku title price availableForSale }
      }
      updatedAt
    }
  }
}`

type listProductsData struct {
	Shop struct {
		CurrencyCode string `json:"currencyCode"`
	} `json:"shop"`
	Products struct {
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
		Nodes []productNode `json:"nodes"`
	} `json:"products"`
}

// ListProducts drains every products page before returning. Stopping at a
// failed page would report the unread remainder as unmatched, so a page
// error fails the whole listing.
func (c *Client) ListProducts(ctx context.Context) ([]domain.ProductRecord, error) {
	var (
		records []domain.ProductRecord
		cursor  string
		pages   int
	)
	for {
		variables := map[string]any{"first": c.pageSize}
		if cursor != "" {
			variables["cursor"] = cursor
		}
		var data listProductsData
		if err := c.execute(ctx, "list products", listProductsQuery, variables, &data); err != nil {
			return nil, err
		}
		pages++
		for _, node := range data.Products.Nodes {
			record, err := node.toRecord(data.Shop.CurrencyCode)
			if err != nil {
				return nil, err
			}
			records = append(records, record)
		}
		if !data.Products.PageInfo.HasNextPage {
			break
		}
		cursor = data.Products.PageInfo.EndCursor
	}
	c.logger.Debug("listed commerce products",
		zap.Int("pages", pages),
		zap.Int("records", len(records)),
	)
	return records, nil
}

const productVariantsQuery = `
query ProductVariants($id: ID!) {
  product(id: $id) {
    id
    variants(first: 20) {
      nodes { id sku title }
    }
  }
}`

const variantsBulkUpdateMutation = `
mutation UpdateVariantSKUs($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants) {
    userErrors { field message }
  }
}`

// UpdateSKUs rewrites the SKUs of a product's variants. The skus slice is
// positional and must match the product's variant order, which both sides
// derive from the size table.
func (c *Client) UpdateSKUs(ctx context.Context, productID string, skus []string) error {
	var data struct {
		Product *struct {
			Variants struct {
				Nodes []variantNode `json:"nodes"`
			} `json:"variants"`
		} `json:"product"`
	}
	if err := c.execute(ctx, "load variants", productVariantsQuery, map[string]any{"id": productID}, &data); err != nil {
		return err
	}
	if data.Product == nil {
		return &Error{op: "load variants", messages: []string{"product " + productID + " not found"}, notFound: true}
	}
	variants := data.Product.Variants.Nodes
	if len(variants) != len(skus) {
		return fmt.Errorf("commerce: update skus: product %s has %d variants, got %d skus", productID, len(variants), len(skus))
	}

	inputs := make([]map[string]any, 0, len(skus))
	for i, v := range variants {
		if v.SKU == skus[i] {
			continue
		}
		inputs = append(inputs, map[string]any{
			"id":            v.ID,
			"inventoryItem": map[string]any{"sku": skus[i]},
		})
	}
	if len(inputs) == 0 {
		return nil
	}

	var result struct {
		Payload struct {
			UserErrors []userError `json:"userErrors"`
		} `json:"productVariantsBulkUpdate"`
	}
	variables := map[string]any{"productId": productID, "variants": inputs}
	if err := c.execute(ctx, "update skus", variantsBulkUpdateMutation, variables, &result); err != nil {
		return err
	}
	if len(result.Payload.UserErrors) > 0 {
		return newUserError("update skus", result.Payload.UserErrors)
	}
	return nil
}

const metafieldsSetMutation = `
mutation SetContentLink($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    userErrors { field message }
  }
}`

// SetContentLink stores the content document id on the product, completing
// the linkage pair from the commerce side.
func (c *Client) SetContentLink(ctx context.Context, productID, contentID string) error {
	variables := map[string]any{"metafields": []map[string]any{{
		"ownerId":   productID,
		"namespace": metafieldNamespace,
		"key":       metafieldContentKey,
		"type":      "single_line_text_field",
		"value":     contentID,
	}}}
	var result struct {
		Payload struct {
			UserErrors []userError `json:"userErrors"`
		} `json:"metafieldsSet"`
	}
	if err := c.execute(ctx, "set content link", metafieldsSetMutation, variables, &result); err != nil {
		return err
	}
	if len(result.Payload.UserErrors) > 0 {
		return newUserError("set content link", result.Payload.UserErrors)
	}
	return nil
}

// UpdateVariantPrice rewrites one variant's price from minor units to the
// API's decimal representation.
func (c *Client) UpdateVariantPrice(ctx context.Context, productID, variantID string, price domain.Money) error {
	variables := map[string]any{"productId": productID, "variants": []map[string]any{{
		"id":    variantID,
		"price": formatPrice(price.Amount),
	}}}
	var result struct {
		Payload struct {
			UserErrors []userError `json:"userErrors"`
		} `json:"productVariantsBulkUpdate"`
	}
	if err := c.execute(ctx, "update variant price", variantsBulkUpdateMutation, variables, &result); err != nil {
		return err
	}
	if len(result.Payload.UserErrors) > 0 {
		return newUserError("update variant price", result.Payload.UserErrors)
	}
	return nil
}

// SetInventory toggles sellable availability across every variant of a
// product.
func (c *Client) SetInventory(ctx context.Context, productID string, available bool) error {
	var data struct {
		Product *struct {
			Variants struct {
				Nodes []variantNode `json:"nodes"`
			} `json:"variants"`
		} `json:"product"`
	}
	if err := c.execute(ctx, "load variants", productVariantsQuery, map[string]any{"id": productID}, &data); err != nil {
		return err
	}
	if data.Product == nil {
		return &Error{op: "set inventory", messages: []string{"product " + productID + " not found"}, notFound: true}
	}

	inputs := make([]map[string]any, 0, len(data.Product.Variants.Nodes))
	for _, v := range data.Product.Variants.Nodes {
		inputs = append(inputs, map[string]any{
			"id":               v.ID,
			"availableForSale": available,
		})
	}
	if len(inputs) == 0 {
		return nil
	}

	var result struct {
		Payload struct {
			UserErrors []userError `json:"userErrors"`
		} `json:"productVariantsBulkUpdate"`
	}
	variables := map[string]any{"productId": productID, "variants": inputs}
	if err := c.execute(ctx, "set inventory", variantsBulkUpdateMutation, variables, &result); err != nil {
		return err
	}
	if len(result.Payload.UserErrors) > 0 {
		return newUserError("set inventory", result.Payload.UserErrors)
	}
	return nil
}

// UpdateDescription rewrites the product description.
func (c *Client) UpdateDescription(ctx context.Context, productID, text string) error {
	variables := map[string]any{"input": map[string]any{
		"id":              productID,
		"descriptionHtml": text,
	}}
	var result struct {
		Payload struct {
			UserErrors []userError `json:"userErrors"`
		} `json:"productUpdate"`
	}
	if err := c.execute(ctx, "update description", productUpdateMutation, variables, &result); err != nil {
		return err
	}
	if len(result.Payload.UserErrors) > 0 {
		return newUserError("update description", result.Payload.UserErrors)
	}
	return nil
}

// formatPrice renders minor units as the decimal string the API expects.
func formatPrice(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}

const productUpdateMutation = `
mutation UpdateProduct($input: ProductInput!) {
  productUpdate(input: $input) {
    userErrors { field message }
  }
}`

// UpdateCollection reassigns the product to a territory. The territory is
// carried in the product type field, the same field ListProducts reads it
// back from.
func (c *Client) UpdateCollection(ctx context.Context, productID string, group domain.CollectionGroup) error {
	if !group.IsValid() {
		return fmt.Errorf("commerce: update collection: invalid territory %q", group)
	}
	variables := map[string]any{"input": map[string]any{
		"id":          productID,
		"productType": string(group),
	}}
	var result struct {
		Payload struct {
			UserErrors []userError `json:"userErrors"`
		} `json:"productUpdate"`
	}
	if err := c.execute(ctx, "update collection", productUpdateMutation, variables, &result); err != nil {
		return err
	}
	if len(result.Payload.UserErrors) > 0 {
		return newUserError("update collection", result.Payload.UserErrors)
	}
	return nil
}

const productDeleteMutation = `
mutation DeleteProduct($input: ProductDeleteInput!) {
  productDelete(input: $input) {
    deletedProductId
    userErrors { field message }
  }
}`

// DeleteProduct removes a product. Deleting an already absent product is
// not an error; removal is idempotent.
func (c *Client) DeleteProduct(ctx context.Context, productID string) error {
	variables := map[string]any{"input": map[string]any{"id": productID}}
	var result struct {
		Payload struct {
			DeletedProductID string      `json:"deletedProductId"`
			UserErrors       []userError `json:"userErrors"`
		} `json:"productDelete"`
	}
	if err := c.execute(ctx, "delete product", productDeleteMutation, variables, &result); err != nil {
		return err
	}
	if len(result.Payload.UserErrors) > 0 {
		uerr := newUserError("delete product", result.Payload.UserErrors)
		if uerr.IsNotFound() {
			return nil
		}
		return uerr
	}
	return nil
}
