// Package repository defines data access interfaces for the dlnad catalog.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"

	"github.com/jmylchreest/dlnad/internal/models"
)

// SearchQuery describes a translated ContentDirectory query against the
// catalog. Where references columns through the aliases o (objects) and
// d (details). An empty ContainerID (or "0" or "*") searches everywhere.
type SearchQuery struct {
	ContainerID string
	Where       string
	Args        []any
	Order       string
	Offset      int
	Limit       int
}

// ObjectRepository defines operations for ContentDirectory object persistence.
type ObjectRepository interface {
	// Create inserts a new object. Returns models.ErrDuplicateID when the
	// object ID already exists.
	Create(ctx context.Context, obj *models.Object) error
	// GetByObjectID retrieves an object with its Detail preloaded.
	// Returns nil, nil when the object does not exist.
	GetByObjectID(ctx context.Context, objectID string) (*models.Object, error)
	// ListChildren retrieves a page of direct children of a container plus
	// the total child count. Order references the o/d column aliases; empty
	// means title order.
	ListChildren(ctx context.Context, parentID, order string, offset, limit int) ([]*models.Object, int64, error)
	// CountChildren returns the number of direct children of a container.
	CountChildren(ctx context.Context, parentID string) (int64, error)
	// Search runs a translated search query, returning a page of matches
	// plus the total match count.
	Search(ctx context.Context, q SearchQuery) ([]*models.Object, int64, error)
	// NextOrdinal returns the ordinal the next child minted under the
	// container should use: one past the ordinal of the newest child.
	NextOrdinal(ctx context.Context, parentID string) (int64, error)
	// DeleteSubtree removes a container's descendants and the container
	// itself, along with their detail and caption rows. The well-known
	// root containers are never removed.
	DeleteSubtree(ctx context.Context, objectID string) error
	// DeleteByObjectID removes a single object row.
	DeleteByObjectID(ctx context.Context, objectID string) error
	// CountByClass returns the number of objects whose class matches the
	// given prefix.
	CountByClass(ctx context.Context, classPrefix string) (int64, error)
	// Transaction executes the given function within a database transaction.
	Transaction(ctx context.Context, fn func(ObjectRepository) error) error
}

// DetailRepository defines operations for media detail persistence.
type DetailRepository interface {
	// Create inserts a new detail row.
	Create(ctx context.Context, detail *models.Detail) error
	// GetByID retrieves a detail by primary key. Returns nil, nil when
	// the row does not exist.
	GetByID(ctx context.Context, id int64) (*models.Detail, error)
	// GetByPath retrieves the detail describing the given path.
	// Returns nil, nil when no row matches.
	GetByPath(ctx context.Context, path string) (*models.Detail, error)
	// Delete removes a detail by primary key.
	Delete(ctx context.Context, id int64) error
	// DeleteByPath removes every detail row describing the given path.
	DeleteByPath(ctx context.Context, path string) error
	// Count returns the number of detail rows with a file path.
	Count(ctx context.Context) (int64, error)
}

// CaptionRepository defines operations for subtitle association persistence.
type CaptionRepository interface {
	// Create inserts a caption row, replacing any existing association.
	Create(ctx context.Context, caption *models.Caption) error
	// GetByDetailID retrieves the caption for a detail.
	// Returns nil, nil when no caption exists.
	GetByDetailID(ctx context.Context, detailID int64) (*models.Caption, error)
	// Delete removes the caption for a detail.
	Delete(ctx context.Context, detailID int64) error
}

// SettingRepository defines operations for persistent key/value settings.
type SettingRepository interface {
	// Get returns the value for a key, or "" when unset.
	Get(ctx context.Context, key string) (string, error)
	// Set stores the value for a key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error
}
