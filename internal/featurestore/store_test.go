package featurestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/nmedina/skulens/internal/archive"
	"github.com/nmedina/skulens/internal/domain"
	"github.com/nmedina/skulens/internal/logger"
	"github.com/nmedina/skulens/internal/storage"
)

// fakeIndex is an in-memory archive.Index.
type fakeIndex struct {
	mu    sync.Mutex
	snaps []domain.Snapshot
	head  string
}

func (f *fakeIndex) Append(_ context.Context, snap *domain.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = append(f.snaps, *snap)
	f.head = snap.VersionID
	return nil
}

func (f *fakeIndex) SetHead(_ context.Context, versionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = versionID
	return nil
}

func (f *fakeIndex) Head(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeIndex) Get(_ context.Context, versionID string) (*domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.snaps {
		if f.snaps[i].VersionID == versionID {
			snap := f.snaps[i]
			return &snap, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeIndex) List(_ context.Context) ([]domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Snapshot, 0, len(f.snaps))
	for i := len(f.snaps) - 1; i >= 0; i-- {
		out = append(out, f.snaps[i])
	}
	return out, nil
}

// fakeCatalog records mirror writes.
type fakeCatalog struct {
	mu       sync.Mutex
	upserts  []string
	replaced [][]domain.ProductRecord
}

func (f *fakeCatalog) Upsert(_ context.Context, record *domain.ProductRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, record.ID)
	return nil
}

func (f *fakeCatalog) ReplaceAll(_ context.Context, records []domain.ProductRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced = append(f.replaced, records)
	return nil
}

func newTestStore(t *testing.T) (*Store, *fakeIndex, *storage.MemoryStorage, *fakeCatalog) {
	t.Helper()
	log := logger.New(&logger.Config{Level: "error", Format: "text", ServiceName: "test"})
	blobs := storage.NewMemoryStorage()
	index := &fakeIndex{}
	catalog := &fakeCatalog{}
	store := NewStore(archive.New(blobs, index, "snapshots", log), catalog, log)
	return store, index, blobs, catalog
}

func validDescriptors(rows int, seed float32) domain.DescriptorSet {
	data := make([]float32, domain.DescriptorDim*rows)
	for i := range data {
		data[i] = seed + float32(i)
	}
	return domain.DescriptorSet{Dim: domain.DescriptorDim, Data: data}
}

func TestRegisterCommitsSnapshotBeforeSwap(t *testing.T) {
	store, index, blobs, catalog := newTestStore(t)
	ctx := context.Background()

	product, versionID, err := store.Register(ctx, "Cola", validDescriptors(5, 1.0))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if product.ID == "" {
		t.Fatal("Register() returned product without ID")
	}
	if versionID == "" {
		t.Fatal("Register() returned empty version")
	}

	head, _ := index.Head(ctx)
	if head != versionID {
		t.Errorf("archive head = %q, want %q", head, versionID)
	}
	if blobs.Len() != 1 {
		t.Errorf("archive holds %d blobs, want 1", blobs.Len())
	}
	if len(catalog.upserts) != 1 || catalog.upserts[0] != product.ID {
		t.Errorf("catalog upserts = %v, want [%s]", catalog.upserts, product.ID)
	}

	view := store.View()
	if view.Version() != versionID {
		t.Errorf("View().Version() = %q, want %q", view.Version(), versionID)
	}
	if id, ok := view.LookupByName("cola"); !ok || id != product.ID {
		t.Errorf("LookupByName(cola) = %q, %v, want %q, true", id, ok, product.ID)
	}
}

func TestRegisterEachCallAddsOneSnapshot(t *testing.T) {
	store, _, blobs, _ := newTestStore(t)
	ctx := context.Background()

	for i, name := range []string{"Cola", "Cola Light", "Agua Mineral"} {
		if _, _, err := store.Register(ctx, name, validDescriptors(3, float32(i))); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
		if blobs.Len() != i+1 {
			t.Fatalf("after %d registrations archive holds %d blobs", i+1, blobs.Len())
		}
	}

	versions, err := store.ListVersions(ctx)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("ListVersions() returned %d, want 3", len(versions))
	}
	if versions[0].ProductCount != 3 {
		t.Errorf("newest snapshot holds %d products, want 3", versions[0].ProductCount)
	}
}

func TestRegisterValidation(t *testing.T) {
	store, _, blobs, _ := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		productName string
		descriptors domain.DescriptorSet
	}{
		{"empty name", "  ", validDescriptors(2, 1.0)},
		{"no descriptors", "Cola", domain.DescriptorSet{Dim: domain.DescriptorDim}},
		{"wrong dimension", "Cola", domain.DescriptorSet{Dim: 64, Data: make([]float32, 64)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := store.Register(ctx, tt.productName, tt.descriptors)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("Register() error = %v, want ErrValidation", err)
			}
		})
	}
	if blobs.Len() != 0 {
		t.Errorf("rejected registrations wrote %d blobs", blobs.Len())
	}
}

func TestRestoreEarlierVersion(t *testing.T) {
	store, index, _, catalog := newTestStore(t)
	ctx := context.Background()

	_, v1, err := store.Register(ctx, "Cola", validDescriptors(3, 1.0))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, _, err := store.Register(ctx, "Cola Light", validDescriptors(3, 2.0)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if store.View().Len() != 2 {
		t.Fatalf("store has %d products before restore, want 2", store.View().Len())
	}

	snap, err := store.Restore(ctx, v1)
	if err != nil {
		t.Fatalf("Restore(%s) error = %v", v1, err)
	}
	if snap.VersionID != v1 {
		t.Errorf("Restore() snapshot = %q, want %q", snap.VersionID, v1)
	}

	view := store.View()
	if view.Len() != 1 {
		t.Errorf("store has %d products after restore, want 1", view.Len())
	}
	if view.Version() != v1 {
		t.Errorf("View().Version() = %q, want %q", view.Version(), v1)
	}
	if _, ok := view.LookupByName("Cola Light"); ok {
		t.Error("product registered after the restored version is still visible")
	}

	head, _ := index.Head(ctx)
	if head != v1 {
		t.Errorf("archive head = %q, want %q", head, v1)
	}
	if len(catalog.replaced) != 1 || len(catalog.replaced[0]) != 1 {
		t.Errorf("catalog mirror not rebuilt from restored snapshot: %v", catalog.replaced)
	}
}

func TestRestoreUnknownVersionLeavesStoreUntouched(t *testing.T) {
	store, index, _, _ := newTestStore(t)
	ctx := context.Background()

	_, v1, err := store.Register(ctx, "Cola", validDescriptors(3, 1.0))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := store.Restore(ctx, "v-missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Restore(v-missing) error = %v, want ErrNotFound", err)
	}

	if store.View().Version() != v1 {
		t.Errorf("store version changed to %q after failed restore", store.View().Version())
	}
	head, _ := index.Head(ctx)
	if head != v1 {
		t.Errorf("archive head changed to %q after failed restore", head)
	}
}

func TestRestoreCorruptBlobIsConsistencyError(t *testing.T) {
	store, _, blobs, _ := newTestStore(t)
	ctx := context.Background()

	_, v1, err := store.Register(ctx, "Cola", validDescriptors(3, 1.0))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	_, v2, err := store.Register(ctx, "Cola Light", validDescriptors(3, 2.0))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Corrupt the first snapshot blob in place.
	key := "snapshots/" + v1 + ".bin"
	rc, err := blobs.Download(ctx, key)
	if err != nil {
		t.Fatalf("Download(%s) error = %v", key, err)
	}
	blob, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	blob[8] ^= 0xff
	if err := blobs.Upload(ctx, key, bytes.NewReader(blob), int64(len(blob)), "application/octet-stream"); err != nil {
		t.Fatalf("Upload(%s) error = %v", key, err)
	}

	if _, err := store.Restore(ctx, v1); !errors.Is(err, domain.ErrConsistency) {
		t.Fatalf("Restore() error = %v, want ErrConsistency", err)
	}
	if store.View().Version() != v2 {
		t.Errorf("store version = %q after failed restore, want %q", store.View().Version(), v2)
	}
}

func TestLoadAdoptsArchiveHead(t *testing.T) {
	store, index, blobs, catalog := newTestStore(t)
	ctx := context.Background()

	product, versionID, err := store.Register(ctx, "Cola", validDescriptors(4, 1.0))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// A second store over the same archive must see the committed head.
	log := logger.New(&logger.Config{Level: "error", Format: "text", ServiceName: "test"})
	fresh := NewStore(archive.New(blobs, index, "snapshots", log), catalog, log)
	if fresh.View().Len() != 0 {
		t.Fatal("fresh store is not empty before Load")
	}
	if err := fresh.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	view := fresh.View()
	if view.Version() != versionID {
		t.Errorf("loaded version = %q, want %q", view.Version(), versionID)
	}
	if _, ok := view.Product(product.ID); !ok {
		t.Errorf("loaded store is missing product %s", product.ID)
	}
}

func TestLoadEmptyArchive(t *testing.T) {
	store, _, _, _ := newTestStore(t)
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load() on empty archive error = %v", err)
	}
	if store.View().Len() != 0 {
		t.Errorf("store has %d products, want 0", store.View().Len())
	}
}
