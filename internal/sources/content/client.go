package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veloria/catalogsync/internal/domain"
	"github.com/veloria/catalogsync/internal/platform/httpx"
	"github.com/veloria/catalogsync/internal/sources"
)

const (
	apiVersion = "v2021-10-21"

	// maxAssetBytes bounds a single image download. Catalog imagery is
	// small; anything beyond this is a misconfigured source URL.
	maxAssetBytes = 20 << 20
)

var (
	// ErrMissingDataset is returned when the client is constructed without
	// a target dataset.
	ErrMissingDataset = errors.New("content: dataset is required")
	// ErrEmptyAsset is returned when an image download yields no bytes.
	ErrEmptyAsset = errors.New("content: image download returned no data")
)

// Client reads and mutates product documents in the content store. It
// implements sources.ContentStore.
type Client struct {
	http    *httpx.Client
	fetch   *http.Client
	dataset string
	logger  *zap.Logger
}

// Deps lists the dependencies of a Client.
type Deps struct {
	HTTP    *httpx.Client
	Dataset string
	// Fetcher downloads image bytes from foreign URLs. It carries no
	// credentials; asset sources are public CDNs. Defaults to a client
	// with a 30 second timeout.
	Fetcher *http.Client
	Logger  *zap.Logger
}

// NewClient constructs a Client from its dependencies.
func NewClient(deps Deps) (*Client, error) {
	if deps.HTTP == nil {
		return nil, errors.New("content: http client is required")
	}
	if strings.TrimSpace(deps.Dataset) == "" {
		return nil, ErrMissingDataset
	}
	fetch := deps.Fetcher
	if fetch == nil {
		fetch = &http.Client{Timeout: 30 * time.Second}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:    deps.HTTP,
		fetch:   fetch,
		dataset: deps.Dataset,
		logger:  logger,
	}, nil
}

type queryResponse struct {
	Result []productDocument `json:"result"`
}

// ListProducts returns every product document in the dataset, draft and
// published revisions collapsed to one record per logical identity.
func (c *Client) ListProducts(ctx context.Context) ([]domain.ProductRecord, error) {
	query := `*[_type == "product"]`
	path := fmt.Sprintf("/%s/data/query/%s?query=%s", apiVersion, c.dataset, url.QueryEscape(query))

	var resp queryResponse
	if err := c.http.DoJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("content: list products: %w", err)
	}

	records := collapseRevisions(resp.Result)
	c.logger.Debug("listed content products",
		zap.Int("documents", len(resp.Result)),
		zap.Int("records", len(records)),
	)
	return records, nil
}

type mutationRequest struct {
	Mutations []mutation `json:"mutations"`
}

type mutation struct {
	Patch  *patchMutation  `json:"patch,omitempty"`
	Delete *deleteMutation `json:"delete,omitempty"`
}

type patchMutation struct {
	ID    string         `json:"id"`
	Set   map[string]any `json:"set,omitempty"`
	Unset []string       `json:"unset,omitempty"`
}

type deleteMutation struct {
	ID string `json:"id"`
}

// PatchProduct applies a partial update to the published revision of a
// product document.
func (c *Client) PatchProduct(ctx context.Context, id string, patch sources.ContentPatch) error {
	if len(patch.Set) == 0 && len(patch.Unset) == 0 {
		return nil
	}
	body := mutationRequest{Mutations: []mutation{{
		Patch: &patchMutation{ID: logicalID(id), Set: patch.Set, Unset: patch.Unset},
	}}}
	if err := c.mutate(ctx, body); err != nil {
		return fmt.Errorf("content: patch product %s: %w", id, err)
	}
	return nil
}

// DeleteProduct removes both revisions of a product document. Deleting an
// already absent document is not an error; removal is idempotent.
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	body := mutationRequest{Mutations: []mutation{
		{Delete: &deleteMutation{ID: logicalID(id)}},
		{Delete: &deleteMutation{ID: draftPrefix + logicalID(id)}},
	}}
	if err := c.mutate(ctx, body); err != nil {
		if httpx.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("content: delete product %s: %w", id, err)
	}
	return nil
}

func (c *Client) mutate(ctx context.Context, body mutationRequest) error {
	path := fmt.Sprintf("/%s/data/mutate/%s", apiVersion, c.dataset)
	return c.http.DoJSON(ctx, http.MethodPost, path, body, nil)
}

type assetResponse struct {
	Document struct {
		ID string `json:"_id"`
	} `json:"document"`
}

// ImportImage downloads an image from a foreign URL and uploads it as an
// image asset, returning the asset reference to set on a document.
func (c *Client) ImportImage(ctx context.Context, imageURL string) (string, error) {
	data, contentType, err := c.download(ctx, imageURL)
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf("/%s/assets/images/%s", apiVersion, c.dataset)
	var resp assetResponse
	if err := c.http.Upload(ctx, http.MethodPost, path, contentType, data, &resp); err != nil {
		return "", fmt.Errorf("content: upload image asset: %w", err)
	}
	if resp.Document.ID == "" {
		return "", errors.New("content: asset upload returned no document id")
	}
	return resp.Document.ID, nil
}

func (c *Client) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("content: build image request: %w", err)
	}
	resp, err := c.fetch.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("content: download image %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("content: download image %s: unexpected status %d", imageURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, "", fmt.Errorf("content: read image %s: %w", imageURL, err)
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyAsset
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}
