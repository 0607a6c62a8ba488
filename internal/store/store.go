// Package store provides database access for transfer history.
package store

import (
	"context"
	"errors"

	"github.com/rudransh-shrivastava/pitshare/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("transfer not found")

type TransferStore struct {
	DB *gorm.DB
}

func NewTransferStore(gdb *gorm.DB) *TransferStore {
	return &TransferStore{DB: gdb}
}

// Record inserts rec, replacing any earlier record with the same sid.
func (ts *TransferStore) Record(ctx context.Context, rec *db.TransferRecord) error {
	return ts.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sid"}},
		UpdateAll: true,
	}).Create(rec).Error
}

// List returns the newest records first. A limit of zero or less returns all.
func (ts *TransferStore) List(ctx context.Context, limit int) ([]db.TransferRecord, error) {
	records := []db.TransferRecord{}
	q := ts.DB.WithContext(ctx).Order("ended_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (ts *TransferStore) Get(ctx context.Context, sid string) (db.TransferRecord, error) {
	var rec db.TransferRecord
	err := ts.DB.WithContext(ctx).Where("sid = ?", sid).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.TransferRecord{}, ErrNotFound
	}
	return rec, err
}
