package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmylchreest/dlnad/internal/models"
	"gorm.io/gorm"
)

// defaultOrder sorts browse results by title; clients that want a
// different order send a SortCriteria which replaces this.
const defaultOrder = "d.title ASC"

// objectRepo implements ObjectRepository using GORM.
type objectRepo struct {
	db *gorm.DB
}

// NewObjectRepository creates a new ObjectRepository.
func NewObjectRepository(db *gorm.DB) *objectRepo {
	return &objectRepo{db: db}
}

// Create inserts a new object. Returns models.ErrDuplicateID when the
// object ID already exists.
func (r *objectRepo) Create(ctx context.Context, obj *models.Object) error {
	if obj.ObjectID == "" {
		return models.ErrObjectIDRequired
	}
	if obj.Class == "" {
		return models.ErrClassRequired
	}
	if err := r.db.WithContext(ctx).Create(obj).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("creating object %s: %w", obj.ObjectID, models.ErrDuplicateID)
		}
		return fmt.Errorf("creating object: %w", err)
	}
	return nil
}

// GetByObjectID retrieves an object with its Detail preloaded.
func (r *objectRepo) GetByObjectID(ctx context.Context, objectID string) (*models.Object, error) {
	var obj models.Object
	if err := r.db.WithContext(ctx).Preload("Detail").
		Where("object_id = ?", objectID).First(&obj).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting object by ID: %w", err)
	}
	return &obj, nil
}

// joined returns a query over objects joined with details, using the o/d
// aliases that sort and search criteria are translated against.
func (r *objectRepo) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("objects AS o").
		Joins("LEFT JOIN details d ON d.id = o.detail_id")
}

// ListChildren retrieves a page of direct children of a container plus the
// total child count.
func (r *objectRepo) ListChildren(ctx context.Context, parentID, order string, offset, limit int) ([]*models.Object, int64, error) {
	var total int64
	if err := r.joined(ctx).Where("o.parent_id = ?", parentID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting children: %w", err)
	}

	if order == "" {
		order = defaultOrder
	}

	query := r.joined(ctx).
		Select("o.*").
		Where("o.parent_id = ?", parentID).
		Order(order).
		Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}

	var objects []*models.Object
	if err := query.Find(&objects).Error; err != nil {
		return nil, 0, fmt.Errorf("listing children: %w", err)
	}
	if err := r.attachDetails(ctx, objects); err != nil {
		return nil, 0, err
	}
	return objects, total, nil
}

// CountChildren returns the number of direct children of a container.
func (r *objectRepo) CountChildren(ctx context.Context, parentID string) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Object{}).
		Where("parent_id = ?", parentID).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("counting children: %w", err)
	}
	return total, nil
}

// Search runs a translated search query, returning a page of matches plus
// the total match count. Container scope covers the container itself and
// every descendant; the IDs "0", "*", and "" search the whole catalog.
func (r *objectRepo) Search(ctx context.Context, q SearchQuery) ([]*models.Object, int64, error) {
	scope := func(tx *gorm.DB) *gorm.DB {
		// Virtual entries reference the original row through ref_id; a
		// search over both would report every item twice.
		tx = tx.Where("o.ref_id IS NULL")
		if q.ContainerID != "" && q.ContainerID != models.RootID && q.ContainerID != "*" {
			tx = tx.Where("o.object_id = ? OR o.object_id LIKE ?",
				q.ContainerID, q.ContainerID+"$%")
		}
		if q.Where != "" {
			tx = tx.Where(q.Where, q.Args...)
		}
		return tx
	}

	var total int64
	if err := scope(r.joined(ctx)).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting search results: %w", err)
	}

	order := q.Order
	if order == "" {
		order = defaultOrder
	}

	query := scope(r.joined(ctx)).
		Select("o.*").
		Order(order).
		Offset(q.Offset)
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var objects []*models.Object
	if err := query.Find(&objects).Error; err != nil {
		return nil, 0, fmt.Errorf("searching objects: %w", err)
	}
	if err := r.attachDetails(ctx, objects); err != nil {
		return nil, 0, err
	}
	return objects, total, nil
}

// attachDetails loads the Detail rows referenced by the given objects.
// Select("o.*") through the join bypasses GORM preloading, so details are
// fetched in a second batch query.
func (r *objectRepo) attachDetails(ctx context.Context, objects []*models.Object) error {
	ids := make([]int64, 0, len(objects))
	for _, obj := range objects {
		if obj.DetailID != nil {
			ids = append(ids, *obj.DetailID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var details []*models.Detail
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&details).Error; err != nil {
		return fmt.Errorf("loading details: %w", err)
	}
	byID := make(map[int64]*models.Detail, len(details))
	for _, d := range details {
		byID[d.ID] = d
	}
	for _, obj := range objects {
		if obj.DetailID != nil {
			obj.Detail = byID[*obj.DetailID]
		}
	}
	return nil
}

// NextOrdinal returns the ordinal for the next child minted under the
// container: one past the ordinal of the newest child, so IDs are never
// reused within a scan generation.
func (r *objectRepo) NextOrdinal(ctx context.Context, parentID string) (int64, error) {
	var newest models.Object
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("id DESC").
		First(&newest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("getting newest child: %w", err)
	}

	ordinal, ok := models.ParseOrdinal(newest.ObjectID)
	if !ok {
		return 0, nil
	}
	return ordinal + 1, nil
}

// DeleteSubtree removes a container's descendants and the container itself,
// along with their detail and caption rows.
func (r *objectRepo) DeleteSubtree(ctx context.Context, objectID string) error {
	switch objectID {
	case models.RootID, models.AllVideoID, models.BrowseDirID:
		return fmt.Errorf("refusing to delete well-known container %s", objectID)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var detailIDs []int64
		if err := tx.Model(&models.Object{}).
			Where("object_id = ? OR object_id LIKE ?", objectID, objectID+"$%").
			Where("detail_id IS NOT NULL").
			Pluck("detail_id", &detailIDs).Error; err != nil {
			return fmt.Errorf("collecting detail ids: %w", err)
		}

		if err := tx.Where("object_id = ? OR object_id LIKE ?", objectID, objectID+"$%").
			Delete(&models.Object{}).Error; err != nil {
			return fmt.Errorf("deleting objects: %w", err)
		}

		if len(detailIDs) > 0 {
			if err := tx.Where("detail_id IN ?", detailIDs).Delete(&models.Caption{}).Error; err != nil {
				return fmt.Errorf("deleting captions: %w", err)
			}
			// Details still referenced by other objects (virtual entries
			// outside the subtree) are kept.
			if err := tx.Where("id IN ?", detailIDs).
				Where("id NOT IN (?)", tx.Session(&gorm.Session{NewDB: true}).
					Model(&models.Object{}).Select("detail_id").Where("detail_id IS NOT NULL")).
				Delete(&models.Detail{}).Error; err != nil {
				return fmt.Errorf("deleting details: %w", err)
			}
		}
		return nil
	})
}

// DeleteByObjectID removes a single object row.
func (r *objectRepo) DeleteByObjectID(ctx context.Context, objectID string) error {
	if err := r.db.WithContext(ctx).
		Where("object_id = ?", objectID).Delete(&models.Object{}).Error; err != nil {
		return fmt.Errorf("deleting object: %w", err)
	}
	return nil
}

// CountByClass returns the number of objects whose class matches the prefix.
func (r *objectRepo) CountByClass(ctx context.Context, classPrefix string) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Object{}).
		Where("class LIKE ?", classPrefix+"%").Count(&total).Error; err != nil {
		return 0, fmt.Errorf("counting objects by class: %w", err)
	}
	return total, nil
}

// Transaction executes the given function within a database transaction.
// The provided function receives a transactional repository.
// If the function returns an error, the transaction is rolled back.
func (r *objectRepo) Transaction(ctx context.Context, fn func(ObjectRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &objectRepo{db: tx}
		return fn(txRepo)
	})
}

// Ensure objectRepo implements ObjectRepository at compile time.
var _ ObjectRepository = (*objectRepo)(nil)
