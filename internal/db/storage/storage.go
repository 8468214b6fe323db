package storage

import (
	"context"

	"github.com/patric-chuzhbe/qrvault/internal/record"
	"github.com/patric-chuzhbe/qrvault/internal/user"
)

type Storage interface {
	FindUser(ctx context.Context, username string) (*user.User, bool, error)

	CreateUser(ctx context.Context, usr *user.User) error

	CreateRecord(ctx context.Context, rec *record.Record) error

	FindRecordsByOwner(ctx context.Context, owner string) ([]record.Record, error)

	FindRecord(ctx context.Context, id, owner string) (*record.Record, bool, error)

	FindRecordByID(ctx context.Context, id string) (*record.Record, bool, error)

	DeleteRecord(ctx context.Context, id, owner string) (*record.Record, bool, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)

	GetNumberOfRecords(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error

	Close() error
}
