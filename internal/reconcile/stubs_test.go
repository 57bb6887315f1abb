package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/veloria/catalogsync/internal/domain"
	"github.com/veloria/catalogsync/internal/sources"
)

// stubSourceError satisfies sources.SourceError for failure injection.
type stubSourceError struct {
	msg       string
	notFound  bool
	transient bool
	conflict  bool
}

func (e *stubSourceError) Error() string     { return e.msg }
func (e *stubSourceError) IsNotFound() bool  { return e.notFound }
func (e *stubSourceError) IsTransient() bool { return e.transient }
func (e *stubSourceError) IsConflict() bool  { return e.conflict }

type stubContentStore struct {
	records   []domain.ProductRecord
	listErr   error
	patchErr  map[string]error
	patches   []string
	deletes   []string
	imports   []string
	importRef string
	importErr error
}

func (s *stubContentStore) ListProducts(context.Context) ([]domain.ProductRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.records, nil
}

func (s *stubContentStore) PatchProduct(_ context.Context, id string, patch sources.ContentPatch) error {
	if err := s.patchErr[id]; err != nil {
		return err
	}
	for key := range patch.Set {
		s.patches = append(s.patches, fmt.Sprintf("%s:%s", id, key))
	}
	for _, key := range patch.Unset {
		s.patches = append(s.patches, fmt.Sprintf("%s:unset:%s", id, key))
	}
	return nil
}

func (s *stubContentStore) DeleteProduct(_ context.Context, id string) error {
	s.deletes = append(s.deletes, id)
	return nil
}

func (s *stubContentStore) ImportImage(_ context.Context, url string) (string, error) {
	if s.importErr != nil {
		return "", s.importErr
	}
	s.imports = append(s.imports, url)
	if s.importRef == "" {
		return "image-stub", nil
	}
	return s.importRef, nil
}

type stubCommerceStore struct {
	records     []domain.ProductRecord
	listErr     error
	failWith    map[string]error
	skuUpdates  []string
	links       []string
	prices      []string
	inventory   []string
	texts       []string
	collections []string
	deletes     []string
}

func (s *stubCommerceStore) ListProducts(context.Context) ([]domain.ProductRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.records, nil
}

func (s *stubCommerceStore) fail(id string) error {
	if err := s.failWith[id]; err != nil {
		return err
	}
	return nil
}

func (s *stubCommerceStore) UpdateSKUs(_ context.Context, productID string, skus []string) error {
	if err := s.fail(productID); err != nil {
		return err
	}
	s.skuUpdates = append(s.skuUpdates, fmt.Sprintf("%s:%v", productID, skus))
	return nil
}

func (s *stubCommerceStore) SetContentLink(_ context.Context, productID, contentID string) error {
	if err := s.fail(productID); err != nil {
		return err
	}
	s.links = append(s.links, fmt.Sprintf("%s:%s", productID, contentID))
	return nil
}

func (s *stubCommerceStore) UpdateVariantPrice(_ context.Context, productID, variantID string, price domain.Money) error {
	if err := s.fail(productID); err != nil {
		return err
	}
	s.prices = append(s.prices, fmt.Sprintf("%s:%s:%d %s", productID, variantID, price.Amount, price.Currency))
	return nil
}

func (s *stubCommerceStore) SetInventory(_ context.Context, productID string, available bool) error {
	if err := s.fail(productID); err != nil {
		return err
	}
	s.inventory = append(s.inventory, fmt.Sprintf("%s:%t", productID, available))
	return nil
}

func (s *stubCommerceStore) UpdateDescription(_ context.Context, productID, text string) error {
	if err := s.fail(productID); err != nil {
		return err
	}
	s.texts = append(s.texts, productID)
	return nil
}

func (s *stubCommerceStore) UpdateCollection(_ context.Context, productID string, group domain.CollectionGroup) error {
	if err := s.fail(productID); err != nil {
		return err
	}
	s.collections = append(s.collections, fmt.Sprintf("%s:%s", productID, group))
	return nil
}

func (s *stubCommerceStore) DeleteProduct(_ context.Context, productID string) error {
	if err := s.fail(productID); err != nil {
		return err
	}
	s.deletes = append(s.deletes, productID)
	return nil
}

func contentRecord(id, name string, group domain.CollectionGroup, mutate ...func(*domain.ProductRecord)) domain.ProductRecord {
	rec := domain.ProductRecord{
		Source:      domain.SystemContent,
		ID:          id,
		Collection:  group,
		DisplayName: name,
		State:       domain.RecordStatePublished,
		Media:       domain.MediaRef{State: domain.MediaMissing},
		UpdatedAt:   time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	for _, fn := range mutate {
		fn(&rec)
	}
	return rec
}

func commerceRecord(id, name string, group domain.CollectionGroup, mutate ...func(*domain.ProductRecord)) domain.ProductRecord {
	rec := domain.ProductRecord{
		Source:      domain.SystemCommerce,
		ID:          id,
		Collection:  group,
		DisplayName: name,
		State:       domain.RecordStatePublished,
		Media:       domain.MediaRef{State: domain.MediaMissing},
		UpdatedAt:   time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC),
	}
	for _, fn := range mutate {
		fn(&rec)
	}
	return rec
}
