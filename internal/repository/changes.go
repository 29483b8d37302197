package repository

import (
	"sync/atomic"

	"gorm.io/gorm"
)

// ChangeCounter tallies rows written to the catalog across all repositories
// sharing a *gorm.DB. The SystemUpdateID poller compares the total between
// ticks to decide whether clients should be told the catalog moved.
type ChangeCounter struct {
	total atomic.Int64
}

// NewChangeCounter creates a counter and hooks it into the database's
// create, update, and delete callback chains.
func NewChangeCounter(db *gorm.DB) (*ChangeCounter, error) {
	c := &ChangeCounter{}

	record := func(tx *gorm.DB) {
		if tx.Error == nil && tx.RowsAffected > 0 {
			c.total.Add(tx.RowsAffected)
		}
	}

	if err := db.Callback().Create().After("gorm:create").Register("dlnad:count_creates", record); err != nil {
		return nil, err
	}
	if err := db.Callback().Update().After("gorm:update").Register("dlnad:count_updates", record); err != nil {
		return nil, err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("dlnad:count_deletes", record); err != nil {
		return nil, err
	}
	return c, nil
}

// Total returns the number of row writes observed so far. Monotonic for the
// lifetime of the connection.
func (c *ChangeCounter) Total() int64 {
	return c.total.Load()
}
