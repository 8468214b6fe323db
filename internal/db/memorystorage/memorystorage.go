package memorystorage

import (
	"context"

	"github.com/patric-chuzhbe/qrvault/internal/db/jsondb"
)

// MemoryStorage keeps everything in memory. It reuses the jsondb
// implementation without a data directory, so nothing is ever flushed.
type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: jsondb.NewEphemeral(),
	}, nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}

func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
