package store

import (
	"context"

	"github.com/rudransh-shrivastava/pitshare/internal/db"
)

// TransferRepository persists the outcome of ended sessions.
type TransferRepository interface {
	Record(ctx context.Context, rec *db.TransferRecord) error
	List(ctx context.Context, limit int) ([]db.TransferRecord, error)
	Get(ctx context.Context, sid string) (db.TransferRecord, error)
}

var _ TransferRepository = (*TransferStore)(nil)
