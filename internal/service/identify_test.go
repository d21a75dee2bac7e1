package service

import (
	"context"
	"errors"
	"testing"

	"github.com/nmedina/skulens/internal/archive"
	"github.com/nmedina/skulens/internal/domain"
	"github.com/nmedina/skulens/internal/featurestore"
	"github.com/nmedina/skulens/internal/matcher"
	"github.com/nmedina/skulens/internal/storage"
)

func newIdentifyFixture(t *testing.T, store *featurestore.Store, extractor Extractor) *IdentifyService {
	t.Helper()
	m := matcher.New(matcher.Config{Ratio: 0.75, MinMatches: 3})
	return NewIdentifyService(extractor, m, store, 0.04, testLogger())
}

func TestIdentifyMatchesRegisteredProduct(t *testing.T) {
	ctx := context.Background()
	log := testLogger()
	store := featurestore.NewStore(archive.New(storage.NewMemoryStorage(), &memIndex{}, "snapshots", log), memCatalog{}, log)

	colaSet := oneHotSet(10.0)
	cola, _, err := store.Register(ctx, "Cola", colaSet)
	if err != nil {
		t.Fatalf("Register(Cola) error = %v", err)
	}
	_, lightVersion, err := store.Register(ctx, "Cola Light", oneHotSet(500.0))
	if err != nil {
		t.Fatalf("Register(Cola Light) error = %v", err)
	}

	extractor := &fakeExtractor{ds: colaSet.Clone(), count: colaSet.Count()}
	svc := newIdentifyFixture(t, store, extractor)

	result, err := svc.Identify(ctx, pngBytes(t))
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if !result.Found {
		t.Fatalf("result = %+v, want a match", result)
	}
	if result.ProductID != cola.ID || result.Name != "Cola" {
		t.Errorf("matched %q (%q), want %q (Cola)", result.ProductID, result.Name, cola.ID)
	}
	if result.StoreVersion != lightVersion {
		t.Errorf("StoreVersion = %q, want %q", result.StoreVersion, lightVersion)
	}
	if result.Matches < 3 || result.Confidence <= 0 {
		t.Errorf("match stats = %+v, want matches above threshold", result)
	}
}

func TestIdentifyNoMatchBelowThreshold(t *testing.T) {
	ctx := context.Background()
	log := testLogger()
	store := featurestore.NewStore(archive.New(storage.NewMemoryStorage(), &memIndex{}, "snapshots", log), memCatalog{}, log)

	if _, _, err := store.Register(ctx, "Cola", oneHotSet(10.0)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	extractor := &fakeExtractor{ds: oneHotSet(9000.0), count: 8}
	svc := newIdentifyFixture(t, store, extractor)

	result, err := svc.Identify(ctx, pngBytes(t))
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if result.Found || result.ProductID != "" {
		t.Errorf("result = %+v, want no match", result)
	}
	if result.Keypoints != 8 {
		t.Errorf("Keypoints = %d, want 8", result.Keypoints)
	}
}

func TestIdentifyEmptyStoreSkipsExtraction(t *testing.T) {
	log := testLogger()
	store := featurestore.NewStore(archive.New(storage.NewMemoryStorage(), &memIndex{}, "snapshots", log), memCatalog{}, log)

	extractor := &fakeExtractor{}
	svc := newIdentifyFixture(t, store, extractor)

	result, err := svc.Identify(context.Background(), pngBytes(t))
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if result.Found {
		t.Errorf("result = %+v, want no match against an empty store", result)
	}
	if extractor.calls != 0 {
		t.Errorf("extractor ran %d times against an empty store", extractor.calls)
	}
}

func TestIdentifyRejectsInvalidImage(t *testing.T) {
	log := testLogger()
	store := featurestore.NewStore(archive.New(storage.NewMemoryStorage(), &memIndex{}, "snapshots", log), memCatalog{}, log)
	svc := newIdentifyFixture(t, store, &fakeExtractor{})

	_, err := svc.Identify(context.Background(), []byte("not an image"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Identify() error = %v, want ErrValidation", err)
	}
}
