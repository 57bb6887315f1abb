package content

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/h2non/gock"

	"github.com/veloria/catalogsync/internal/domain"
	"github.com/veloria/catalogsync/internal/platform/httpx"
	"github.com/veloria/catalogsync/internal/sources"
)

const testBase = "https://veloria.api.example.com"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	hc := httpx.NewClient(httpx.Options{
		BaseURL:        testBase,
		Token:          "content-token",
		Timeout:        5 * time.Second,
		RetryBaseDelay: time.Millisecond,
	})
	gock.InterceptClient(hc.HTTPClient())

	fetch := &http.Client{Timeout: 5 * time.Second}
	gock.InterceptClient(fetch)
	t.Cleanup(gock.Off)

	client, err := NewClient(Deps{HTTP: hc, Dataset: "production", Fetcher: fetch})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func TestListProductsMapsDocuments(t *testing.T) {
	gock.New(testBase).
		Get("/v2021-10-21/data/query/production").
		MatchHeader("Authorization", "Bearer content-token").
		Reply(200).
		JSON(map[string]any{"result": []map[string]any{
			{
				"_id":              "prod-onyx",
				"_type":            "product",
				"title":            "Onyx",
				"collection":       "Terra",
				"inStock":          true,
				"priceCents":       8900,
				"skus":             []string{"TERRA-ONYX-6ML"},
				"image":            map[string]any{"asset": map[string]any{"_ref": "image-abc"}},
				"shopifyProductId": "gid://shop/Product/11",
				"_updatedAt":       "2026-08-01T10:00:00Z",
			},
			{
				"_id":        "drafts.prod-selene",
				"_type":      "product",
				"title":      "Selene",
				"collection": "marine",
				"_updatedAt": "2026-08-02T09:00:00Z",
			},
		}})

	client := newTestClient(t)
	records, err := client.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	onyx := records[0]
	if onyx.ID != "prod-onyx" || onyx.State != domain.RecordStatePublished {
		t.Fatalf("unexpected onyx record: %+v", onyx)
	}
	if onyx.Collection != domain.CollectionTerra {
		t.Fatalf("collection not normalised: %q", onyx.Collection)
	}
	if onyx.Media.State != domain.MediaPresent || onyx.Media.AssetRef != "image-abc" {
		t.Fatalf("unexpected media: %+v", onyx.Media)
	}
	if len(onyx.Variants) != 1 || !onyx.Variants[0].Price.Equal(domain.Money{Amount: 8900, Currency: "EUR"}) {
		t.Fatalf("unexpected price variant: %+v", onyx.Variants)
	}
	if onyx.Linkage != "gid://shop/Product/11" {
		t.Fatalf("unexpected linkage: %q", onyx.Linkage)
	}

	selene := records[1]
	if selene.ID != "prod-selene" {
		t.Fatalf("draft prefix not stripped: %q", selene.ID)
	}
	if selene.State != domain.RecordStateDraft {
		t.Fatalf("expected draft state, got %q", selene.State)
	}
	if selene.Media.State != domain.MediaMissing {
		t.Fatalf("expected missing media, got %q", selene.Media.State)
	}
}

func TestListProductsPrefersPublishedRevision(t *testing.T) {
	gock.New(testBase).
		Get("/v2021-10-21/data/query/production").
		Reply(200).
		JSON(map[string]any{"result": []map[string]any{
			{"_id": "drafts.prod-onyx", "title": "Onyx (draft edit)", "collection": "terra", "_updatedAt": "2026-08-03T08:00:00Z"},
			{"_id": "prod-onyx", "title": "Onyx", "collection": "terra", "_updatedAt": "2026-08-01T10:00:00Z"},
		}})

	client := newTestClient(t)
	records, err := client.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected revisions collapsed to 1 record, got %d", len(records))
	}
	if records[0].DisplayName != "Onyx" || records[0].State != domain.RecordStatePublished {
		t.Fatalf("published revision should win: %+v", records[0])
	}
}

func TestPatchProductSendsMutation(t *testing.T) {
	gock.New(testBase).
		Post("/v2021-10-21/data/mutate/production").
		JSON(map[string]any{"mutations": []map[string]any{
			{"patch": map[string]any{
				"id":    "prod-onyx",
				"set":   map[string]any{"inStock": false},
				"unset": []string{"legacyTitle"},
			}},
		}}).
		Reply(200).
		JSON(map[string]any{"transactionId": "tx1"})

	client := newTestClient(t)
	err := client.PatchProduct(context.Background(), "prod-onyx", sources.ContentPatch{
		Set:   map[string]any{"inStock": false},
		Unset: []string{"legacyTitle"},
	})
	if err != nil {
		t.Fatalf("PatchProduct returned error: %v", err)
	}
	if !gock.IsDone() {
		t.Fatal("expected mutation to be sent")
	}
}

func TestPatchProductEmptyPatchIsNoop(t *testing.T) {
	client := newTestClient(t)
	if err := client.PatchProduct(context.Background(), "prod-onyx", sources.ContentPatch{}); err != nil {
		t.Fatalf("empty patch should be a no-op, got %v", err)
	}
}

func TestDeleteProductRemovesBothRevisions(t *testing.T) {
	var captured struct {
		Mutations []mutation `json:"mutations"`
	}
	gock.New(testBase).
		Post("/v2021-10-21/data/mutate/production").
		AddMatcher(func(req *http.Request, _ *gock.Request) (bool, error) {
			if err := decodeBody(req, &captured); err != nil {
				return false, err
			}
			return true, nil
		}).
		Reply(200).
		JSON(map[string]any{"transactionId": "tx2"})

	client := newTestClient(t)
	if err := client.DeleteProduct(context.Background(), "prod-selene"); err != nil {
		t.Fatalf("DeleteProduct returned error: %v", err)
	}
	if len(captured.Mutations) != 2 {
		t.Fatalf("expected delete mutations for both revisions, got %d", len(captured.Mutations))
	}
	if captured.Mutations[0].Delete.ID != "prod-selene" || captured.Mutations[1].Delete.ID != "drafts.prod-selene" {
		t.Fatalf("unexpected delete targets: %+v", captured.Mutations)
	}
}

func TestDeleteProductMissingIsIdempotent(t *testing.T) {
	gock.New(testBase).
		Post("/v2021-10-21/data/mutate/production").
		Reply(404).
		JSON(map[string]any{"error": "document not found"})

	client := newTestClient(t)
	if err := client.DeleteProduct(context.Background(), "prod-gone"); err != nil {
		t.Fatalf("deleting an absent document should succeed, got %v", err)
	}
}

func TestImportImageUploadsDownloadedBytes(t *testing.T) {
	gock.New("https://cdn.example.com").
		Get("/images/onyx.jpg").
		Reply(200).
		SetHeader("Content-Type", "image/jpeg").
		BodyString("jpeg-bytes")

	gock.New(testBase).
		Post("/v2021-10-21/assets/images/production").
		MatchHeader("Content-Type", "image/jpeg").
		BodyString("jpeg-bytes").
		Reply(200).
		JSON(map[string]any{"document": map[string]any{"_id": "image-onyx-6x4-jpg"}})

	client := newTestClient(t)
	ref, err := client.ImportImage(context.Background(), "https://cdn.example.com/images/onyx.jpg")
	if err != nil {
		t.Fatalf("ImportImage returned error: %v", err)
	}
	if ref != "image-onyx-6x4-jpg" {
		t.Fatalf("unexpected asset ref: %q", ref)
	}
}

func decodeBody(req *http.Request, out any) error {
	defer req.Body.Close()
	return json.NewDecoder(req.Body).Decode(out)
}

func TestImportImageRejectsEmptyDownload(t *testing.T) {
	gock.New("https://cdn.example.com").
		Get("/images/empty.jpg").
		Reply(200).
		BodyString("")

	client := newTestClient(t)
	if _, err := client.ImportImage(context.Background(), "https://cdn.example.com/images/empty.jpg"); err == nil {
		t.Fatal("expected error for empty image body")
	}
}
