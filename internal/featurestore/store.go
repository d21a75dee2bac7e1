package featurestore

import (
	"context"
	"fmt"
	"hash/crc32"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nmedina/skulens/internal/archive"
	"github.com/nmedina/skulens/internal/domain"
	"github.com/nmedina/skulens/internal/logger"
)

// Catalog mirrors the store contents into queryable rows. Implemented by
// repository.ProductRepository. Mirror writes are derived data: a mirror
// failure is logged but never rolls back a committed snapshot.
type Catalog interface {
	Upsert(ctx context.Context, record *domain.ProductRecord) error
	ReplaceAll(ctx context.Context, records []domain.ProductRecord) error
}

// Store is the versioned product feature store. Reads take a lock-free
// snapshot of the current state; mutations serialize behind a single writer
// lock and follow a snapshot-then-swap discipline: the new state is archived
// durably before it becomes visible, so the in-memory store can never be
// ahead of the newest snapshot.
type Store struct {
	mu      sync.Mutex // serializes Register and Restore
	state   atomic.Pointer[State]
	archive *archive.Archive
	catalog Catalog
	log     *logger.Logger
}

// NewStore creates a Store backed by the given archive and catalog mirror.
// The store starts empty; call Load to adopt the archive head.
func NewStore(arc *archive.Archive, catalog Catalog, log *logger.Logger) *Store {
	s := &Store{
		archive: arc,
		catalog: catalog,
		log:     log.WithField(logger.FieldComponent, "featurestore"),
	}
	s.state.Store(NewState())
	return s
}

// Load replaces the in-memory state with the archive head snapshot. A fresh
// archive with no head leaves the store empty. Called once at startup.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.archive.Head(ctx)
	if err != nil {
		return fmt.Errorf("read archive head: %w", err)
	}
	if head == "" {
		s.log.Info("No snapshot found, starting with an empty store")
		return nil
	}

	state, _, err := s.fetchState(ctx, head)
	if err != nil {
		return err
	}
	s.state.Store(state)
	s.log.WithFields(logger.Fields{
		logger.FieldVersionID: head,
		logger.FieldCount:     state.Len(),
	}).Info("Feature store loaded")
	return nil
}

// View returns the current immutable state. Callers hold the returned
// pointer for the duration of one logical operation, so a whole analysis
// run observes a single store version.
func (s *Store) View() *State {
	return s.state.Load()
}

// Register adds a product with its reference descriptors and commits a new
// snapshot version. The snapshot is durable before the product becomes
// visible to matching.
//
// Parameters:
//   - ctx: request context
//   - name: human-readable product name, also the transcript catalog entry
//   - descriptors: reference keypoint descriptors for the product
//
// Returns:
//   - domain.Product: the registered product with its generated ID
//   - string: the snapshot version the registration was committed as
//   - error: validation, archive, or encoding failure
func (s *Store) Register(ctx context.Context, name string, descriptors domain.DescriptorSet) (domain.Product, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Product{}, "", fmt.Errorf("%w: product name is required", domain.ErrValidation)
	}
	if err := descriptors.Validate(); err != nil {
		return domain.Product{}, "", err
	}
	if descriptors.Dim != domain.DescriptorDim {
		return domain.Product{}, "", fmt.Errorf("%w: descriptor dimension %d, want %d", domain.ErrValidation, descriptors.Dim, domain.DescriptorDim)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product := domain.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Descriptors: descriptors.Clone(),
		CreatedAt:   time.Now().UTC(),
	}

	versionID := archive.NewVersionID()
	next := s.state.Load().withProduct(product).withVersion(versionID)

	blob, checksum, err := EncodeState(next)
	if err != nil {
		return domain.Product{}, "", fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := s.archive.Commit(ctx, versionID, blob, checksum, next.Len()); err != nil {
		return domain.Product{}, "", err
	}

	// The snapshot is durable from here on. The mirror is derived data, so
	// a mirror failure degrades catalog queries but not the store itself.
	record := &domain.ProductRecord{
		ID:              product.ID,
		Name:            product.Name,
		DescriptorCount: product.Descriptors.Count(),
		CreatedAt:       product.CreatedAt,
	}
	if err := s.catalog.Upsert(ctx, record); err != nil {
		s.log.WithError(err).WithField(logger.FieldProductID, product.ID).
			Warn("Catalog mirror upsert failed")
	}

	s.state.Store(next)
	s.log.WithFields(logger.Fields{
		logger.FieldProductID: product.ID,
		logger.FieldVersionID: versionID,
		logger.FieldCount:     product.Descriptors.Count(),
	}).Info("Product registered")
	return product, versionID, nil
}

// Restore replaces the live store with an archived snapshot and promotes it
// to head. The snapshot is verified against its recorded checksum before the
// swap; on any failure the live store is left untouched.
//
// Returns domain.ErrNotFound for an unknown version and domain.ErrConsistency
// when the blob does not match the snapshot record.
func (s *Store) Restore(ctx context.Context, versionID string) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, snap, err := s.fetchState(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if err := s.archive.Promote(ctx, versionID); err != nil {
		return nil, err
	}

	if err := s.catalog.ReplaceAll(ctx, state.Records()); err != nil {
		s.log.WithError(err).WithField(logger.FieldVersionID, versionID).
			Warn("Catalog mirror rebuild failed")
	}

	s.state.Store(state)
	s.log.WithFields(logger.Fields{
		logger.FieldVersionID: versionID,
		logger.FieldCount:     state.Len(),
	}).Info("Store restored")
	return snap, nil
}

func (s *Store) fetchState(ctx context.Context, versionID string) (*State, *domain.Snapshot, error) {
	snap, blob, err := s.archive.Fetch(ctx, versionID)
	if err != nil {
		return nil, nil, err
	}
	if got := blobChecksum(blob); got != snap.Checksum {
		return nil, nil, fmt.Errorf("%w: snapshot %s blob checksum %s does not match recorded %s",
			domain.ErrConsistency, versionID, got, snap.Checksum)
	}
	state, err := DecodeState(blob)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decode snapshot %s: %v", domain.ErrConsistency, versionID, err)
	}
	return state.withVersion(versionID), snap, nil
}

// ListVersions returns the snapshot history, most recent first.
func (s *Store) ListVersions(ctx context.Context) ([]domain.Snapshot, error) {
	return s.archive.List(ctx)
}

// blobChecksum computes the hex CRC of a snapshot blob body, matching the
// checksum recorded at commit time.
func blobChecksum(blob []byte) string {
	if len(blob) < 4 {
		return ""
	}
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE(blob[:len(blob)-4]))
}
