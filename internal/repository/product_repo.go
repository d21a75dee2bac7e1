package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/nmedina/skulens/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository maintains the queryable catalog mirror of registered
// products. The mirror is derived data: the feature store blob is the source
// of truth, and the mirror is rebuilt wholesale whenever a snapshot is
// restored.
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new ProductRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ProductRepository: repository instance bound to db.
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Upsert creates or updates a catalog row keyed by product ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - record: catalog row to persist.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *ProductRepository) Upsert(ctx context.Context, record *domain.ProductRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(record).Error
}

// ReplaceAll rebuilds the whole mirror from the given rows in one
// transaction. Used after a snapshot restore.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - records: full set of catalog rows for the restored store.
// Returns:
//   - error: non-nil if the rebuild fails.
func (r *ProductRepository) ReplaceAll(ctx context.Context, records []domain.ProductRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.ProductRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear catalog mirror: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
}

// GetByID retrieves a catalog row by product ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: product ID.
// Returns:
//   - *domain.ProductRecord: row if found.
//   - error: wraps domain.ErrNotFound when no row exists.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.ProductRecord, error) {
	var record domain.ProductRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &record, nil
}

// List retrieves all catalog rows ordered by name.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []domain.ProductRecord: catalog rows.
//   - error: non-nil if the query fails.
func (r *ProductRepository) List(ctx context.Context) ([]domain.ProductRecord, error) {
	var records []domain.ProductRecord
	if err := r.db.WithContext(ctx).Order("name").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Count returns the number of catalog rows.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - int64: number of rows.
//   - error: non-nil if the query fails.
func (r *ProductRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.ProductRecord{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
