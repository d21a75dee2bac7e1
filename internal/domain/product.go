package domain

import (
	"fmt"
	"time"
)

// DescriptorDim is the length of a single keypoint descriptor vector.
const DescriptorDim = 128

// DescriptorSet is a dense, row-major matrix of keypoint descriptors.
// Each row is one fixed-length feature vector. The flat layout keeps the
// reference sets cheap to keep resident and to serialize losslessly.
type DescriptorSet struct {
	Dim  int
	Data []float32
}

// NewDescriptorSet builds a DescriptorSet from individual descriptor rows.
// All rows must have length dim.
func NewDescriptorSet(dim int, rows [][]float32) (DescriptorSet, error) {
	if dim <= 0 {
		return DescriptorSet{}, fmt.Errorf("%w: descriptor dimension must be positive, got %d", ErrValidation, dim)
	}
	data := make([]float32, 0, dim*len(rows))
	for i, row := range rows {
		if len(row) != dim {
			return DescriptorSet{}, fmt.Errorf("%w: descriptor %d has length %d, want %d", ErrValidation, i, len(row), dim)
		}
		data = append(data, row...)
	}
	return DescriptorSet{Dim: dim, Data: data}, nil
}

// Count returns the number of descriptors in the set.
func (s DescriptorSet) Count() int {
	if s.Dim <= 0 {
		return 0
	}
	return len(s.Data) / s.Dim
}

// Row returns descriptor i as a slice aliasing the underlying storage.
func (s DescriptorSet) Row(i int) []float32 {
	return s.Data[i*s.Dim : (i+1)*s.Dim]
}

// Clone returns a deep copy of the set.
func (s DescriptorSet) Clone() DescriptorSet {
	data := make([]float32, len(s.Data))
	copy(data, s.Data)
	return DescriptorSet{Dim: s.Dim, Data: data}
}

// Validate checks the structural invariants of the set.
func (s DescriptorSet) Validate() error {
	if s.Dim <= 0 {
		return fmt.Errorf("%w: descriptor dimension must be positive", ErrValidation)
	}
	if len(s.Data) == 0 {
		return fmt.Errorf("%w: descriptor set is empty", ErrValidation)
	}
	if len(s.Data)%s.Dim != 0 {
		return fmt.Errorf("%w: descriptor data length %d is not a multiple of dimension %d", ErrValidation, len(s.Data), s.Dim)
	}
	return nil
}

// Product is a registered product with its reference descriptors.
// Descriptors are immutable once registered; correcting a bad registration
// is done by restoring an earlier snapshot, not by editing the product.
type Product struct {
	ID          string
	Name        string
	Descriptors DescriptorSet
	CreatedAt   time.Time
}

// ProductRecord is the queryable catalog mirror of a registered product.
// It is derived from the feature store blob and rebuilt wholesale on restore,
// so it never carries descriptor data.
type ProductRecord struct {
	ID              string    `gorm:"type:text;primaryKey" json:"id"`
	Name            string    `gorm:"type:text;not null;index:idx_products_name" json:"name"`
	DescriptorCount int       `json:"descriptor_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName returns the database table name for ProductRecord.
func (ProductRecord) TableName() string {
	return "products"
}
