package fsbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record tracks a managed object. Address is unique across an Index.
type Record struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// Index stores managed records.
//
// Create must be atomic per address: of two concurrent Create calls for the
// same address at most one succeeds, the other returns ErrConflict. Delete
// returns ErrNotFound if the record is already gone.
type Index interface {
	// Create stores rec, assigning ID and CreatedAt when they are empty.
	Create(ctx context.Context, rec Record) (*Record, error)

	// FindByAddress returns the record for address or ErrNotFound.
	FindByAddress(ctx context.Context, address string) (*Record, error)

	// Delete removes rec.
	Delete(ctx context.Context, rec *Record) error

	// List returns all records ordered by creation time.
	List(ctx context.Context) ([]*Record, error)

	Close() error
}

// NewRecordID generates a UUID v7 for a record.
func NewRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}

// PrepareRecord fills in the ID and CreatedAt of rec when they are unset.
// Index implementations call it from Create.
func PrepareRecord(rec Record) Record {
	if rec.ID == "" {
		rec.ID = NewRecordID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec
}
