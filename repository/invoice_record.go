package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoiceguard/gst-invoice-verification/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvoiceRecord is one recorded invoice, keyed by (GSTIN, normalized
// invoice number, financial year). Rows are inserted once and never
// updated.
type InvoiceRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GSTIN         string    `gorm:"type:varchar(15);not null" json:"gstin"`
	InvoiceNo     string    `gorm:"type:varchar(16);not null" json:"invoice_no"` // normalized form
	FinancialYear string    `gorm:"type:varchar(7);not null" json:"financial_year"`
	DuplicateKey  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

func (r *InvoiceRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// keyDelimiter never occurs in a GSTIN, a normalized invoice number or a
// financial year label.
const keyDelimiter = "|"

// BuildDuplicateKey encodes the composite duplicate key.
func BuildDuplicateKey(gstin, normalizedInvoiceNo, financialYear string) string {
	return strings.Join([]string{strings.ToUpper(gstin), normalizedInvoiceNo, financialYear}, keyDelimiter)
}

// InsertOutcome is the result of a TryInsert call.
type InsertOutcome int

const (
	Inserted InsertOutcome = iota
	AlreadyExists
)

// InvoiceRecordRepository is the persistence contract consumed by the
// duplicate gate. TryInsert must be atomic with respect to concurrent
// callers presenting the same key: exactly one of them observes Inserted.
type InvoiceRecordRepository interface {
	TryInsert(ctx context.Context, record *InvoiceRecord) (InsertOutcome, error)
	Lookup(ctx context.Context, key string) (bool, error)
}

type invoiceRecordRepository struct {
	db *gorm.DB
}

func NewInvoiceRecordRepository(db *gorm.DB) InvoiceRecordRepository {
	return &invoiceRecordRepository{db: db}
}

// TryInsert inserts the record unless its duplicate key already exists.
// Atomicity comes from the unique index on duplicate_key together with
// ON CONFLICT DO NOTHING.
func (r *invoiceRecordRepository) TryInsert(ctx context.Context, record *InvoiceRecord) (InsertOutcome, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "duplicate_key"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		logger.Error("Failed to insert invoice record", result.Error, map[string]interface{}{
			"duplicate_key": record.DuplicateKey,
		})
		return AlreadyExists, result.Error
	}

	if result.RowsAffected == 0 {
		return AlreadyExists, nil
	}

	logger.Debug("Invoice record inserted", map[string]interface{}{
		"duplicate_key": record.DuplicateKey,
		"record_id":     record.ID,
	})
	return Inserted, nil
}

// Lookup reports whether a record with the given duplicate key exists.
// Read-only; never inserts.
func (r *invoiceRecordRepository) Lookup(ctx context.Context, key string) (bool, error) {
	var record InvoiceRecord
	err := r.db.WithContext(ctx).First(&record, "duplicate_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		logger.Error("Failed to look up invoice record", err, map[string]interface{}{
			"duplicate_key": key,
		})
		return false, err
	}
	return true, nil
}
