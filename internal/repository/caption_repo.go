package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/dlnad/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// captionRepo implements CaptionRepository using GORM.
type captionRepo struct {
	db *gorm.DB
}

// NewCaptionRepository creates a new CaptionRepository.
func NewCaptionRepository(db *gorm.DB) *captionRepo {
	return &captionRepo{db: db}
}

// Create inserts a caption row, replacing any existing association.
func (r *captionRepo) Create(ctx context.Context, caption *models.Caption) error {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "detail_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"path"}),
		}).
		Create(caption).Error; err != nil {
		return fmt.Errorf("creating caption: %w", err)
	}
	return nil
}

// GetByDetailID retrieves the caption for a detail.
func (r *captionRepo) GetByDetailID(ctx context.Context, detailID int64) (*models.Caption, error) {
	var caption models.Caption
	if err := r.db.WithContext(ctx).Where("detail_id = ?", detailID).First(&caption).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting caption: %w", err)
	}
	return &caption, nil
}

// Delete removes the caption for a detail.
func (r *captionRepo) Delete(ctx context.Context, detailID int64) error {
	if err := r.db.WithContext(ctx).
		Where("detail_id = ?", detailID).Delete(&models.Caption{}).Error; err != nil {
		return fmt.Errorf("deleting caption: %w", err)
	}
	return nil
}

// Ensure captionRepo implements CaptionRepository at compile time.
var _ CaptionRepository = (*captionRepo)(nil)
