package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/dlnad/internal/models"
	"gorm.io/gorm"
)

// detailRepo implements DetailRepository using GORM.
type detailRepo struct {
	db *gorm.DB
}

// NewDetailRepository creates a new DetailRepository.
func NewDetailRepository(db *gorm.DB) *detailRepo {
	return &detailRepo{db: db}
}

// Create inserts a new detail row.
func (r *detailRepo) Create(ctx context.Context, detail *models.Detail) error {
	if err := r.db.WithContext(ctx).Create(detail).Error; err != nil {
		return fmt.Errorf("creating detail: %w", err)
	}
	return nil
}

// GetByID retrieves a detail by primary key.
func (r *detailRepo) GetByID(ctx context.Context, id int64) (*models.Detail, error) {
	var detail models.Detail
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&detail).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting detail by ID: %w", err)
	}
	return &detail, nil
}

// GetByPath retrieves the detail describing the given path.
func (r *detailRepo) GetByPath(ctx context.Context, path string) (*models.Detail, error) {
	var detail models.Detail
	if err := r.db.WithContext(ctx).Where("path = ?", path).First(&detail).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting detail by path: %w", err)
	}
	return &detail, nil
}

// Delete removes a detail by primary key.
func (r *detailRepo) Delete(ctx context.Context, id int64) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Detail{}).Error; err != nil {
		return fmt.Errorf("deleting detail: %w", err)
	}
	return nil
}

// DeleteByPath removes every detail row describing the given path.
func (r *detailRepo) DeleteByPath(ctx context.Context, path string) error {
	if err := r.db.WithContext(ctx).Where("path = ?", path).Delete(&models.Detail{}).Error; err != nil {
		return fmt.Errorf("deleting detail by path: %w", err)
	}
	return nil
}

// Count returns the number of detail rows with a file path.
func (r *detailRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Detail{}).
		Where("path IS NOT NULL").Count(&total).Error; err != nil {
		return 0, fmt.Errorf("counting details: %w", err)
	}
	return total, nil
}

// Ensure detailRepo implements DetailRepository at compile time.
var _ DetailRepository = (*detailRepo)(nil)
