package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/nmedina/skulens/internal/domain"
	"gorm.io/gorm"
)

// SnapshotRepository is the version archive's index: append-only snapshot
// metadata plus the head pointer naming the currently live version.
type SnapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new SnapshotRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *SnapshotRepository: repository instance bound to db.
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Append inserts a snapshot row and moves the head pointer to it in one
// transaction. Failure leaves both untouched.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - snap: snapshot metadata to record.
// Returns:
//   - error: non-nil if insert or head update fails.
func (r *SnapshotRepository) Append(ctx context.Context, snap *domain.Snapshot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(snap).Error; err != nil {
			return fmt.Errorf("failed to insert snapshot row: %w", err)
		}
		return setHead(tx, snap.VersionID)
	})
}

// SetHead moves the head pointer to an existing version.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - versionID: version to make live.
// Returns:
//   - error: non-nil if the update fails.
func (r *SnapshotRepository) SetHead(ctx context.Context, versionID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return setHead(tx, versionID)
	})
}

func setHead(tx *gorm.DB, versionID string) error {
	var head domain.StoreHead
	err := tx.First(&head).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		head = domain.StoreHead{VersionID: versionID}
		return tx.Create(&head).Error
	case err != nil:
		return fmt.Errorf("failed to read store head: %w", err)
	default:
		head.VersionID = versionID
		return tx.Save(&head).Error
	}
}

// Head returns the currently live version ID, or "" when nothing has been
// committed yet.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - string: live version ID or "".
//   - error: non-nil if the query fails.
func (r *SnapshotRepository) Head(ctx context.Context) (string, error) {
	var head domain.StoreHead
	err := r.db.WithContext(ctx).First(&head).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return head.VersionID, nil
}

// Get retrieves snapshot metadata by version ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - versionID: version to look up.
// Returns:
//   - *domain.Snapshot: snapshot metadata if found.
//   - error: wraps domain.ErrNotFound for unknown versions.
func (r *SnapshotRepository) Get(ctx context.Context, versionID string) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := r.db.WithContext(ctx).First(&snap, "version_id = ?", versionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("version %s: %w", versionID, domain.ErrNotFound)
		}
		return nil, err
	}
	return &snap, nil
}

// List retrieves all snapshot rows, most recent first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []domain.Snapshot: snapshot metadata rows.
//   - error: non-nil if the query fails.
func (r *SnapshotRepository) List(ctx context.Context) ([]domain.Snapshot, error) {
	var snaps []domain.Snapshot
	if err := r.db.WithContext(ctx).Order("created_at DESC, version_id DESC").Find(&snaps).Error; err != nil {
		return nil, err
	}
	return snaps, nil
}
