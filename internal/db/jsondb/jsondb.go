// Package jsondb provides a flat-file implementation of the storage
// interface. Credentials and QR records live in two JSON documents inside a
// data directory; the full data set is read into memory at start and written
// back on every mutation. A mutex serializes mutations, so concurrent
// requests cannot lose updates to each other.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/patric-chuzhbe/qrvault/internal/models"
	"github.com/patric-chuzhbe/qrvault/internal/record"
	"github.com/patric-chuzhbe/qrvault/internal/user"
)

const (
	usersFileName   = "users.json"
	recordsFileName = "qr_codes.json"
)

// ImagesSubDir is the subdirectory of the data directory holding cached
// rendered bitmaps.
const ImagesSubDir = "qr_images"

type recordEntry struct {
	Link      string    `json:"link"`
	ImagePath string    `json:"image_path"`
	CreatedAt time.Time `json:"created_at"`
}

// CacheStruct is the in-memory image of both JSON documents.
type CacheStruct struct {
	// Users maps username to bcrypt password hash.
	Users map[string]string

	// Records maps username to record id to the stored entry.
	Records map[string]map[string]recordEntry
}

type JSONDB struct {
	dataDir string
	Cache   CacheStruct

	mu sync.Mutex
}

// New loads both JSON documents from dataDir, creating the directory and
// empty documents when they do not exist yet.
func New(dataDir string) (*JSONDB, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, ImagesSubDir), 0755); err != nil {
		return nil, fmt.Errorf("in internal/db/jsondb/jsondb.go/New(): error while `os.MkdirAll()` calling: %w", err)
	}

	db := &JSONDB{
		dataDir: dataDir,
		Cache: CacheStruct{
			Users:   map[string]string{},
			Records: map[string]map[string]recordEntry{},
		},
	}

	if err := parseJSONFile(db.usersFile(), &db.Cache.Users); err != nil {
		return nil, err
	}
	if err := parseJSONFile(db.recordsFile(), &db.Cache.Records); err != nil {
		return nil, err
	}

	return db, nil
}

// NewEphemeral returns a JSONDB without a data directory. All data stays in
// memory and flushes are no-ops; memorystorage builds on this.
func NewEphemeral() *JSONDB {
	return &JSONDB{
		Cache: CacheStruct{
			Users:   map[string]string{},
			Records: map[string]map[string]recordEntry{},
		},
	}
}

func (db *JSONDB) usersFile() string {
	return filepath.Join(db.dataDir, usersFileName)
}

func (db *JSONDB) recordsFile() string {
	return filepath.Join(db.dataDir, recordsFileName)
}

// ImageFileName returns the path inside the data directory where the cached
// bitmap for the given record id is kept.
func (db *JSONDB) ImageFileName(id string) string {
	return filepath.Join(db.dataDir, ImagesSubDir, id+".png")
}

func parseJSONFile(fileName string, target interface{}) error {
	file, err := os.Open(fileName)
	if os.IsNotExist(err) {
		return writeToJSONFile(fileName, target)
	}
	if err != nil {
		return fmt.Errorf("%w: %s", models.ErrStorage, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(target); err != nil {
		return fmt.Errorf("%w: error decoding %s: %s", models.ErrStorage, fileName, err)
	}

	return nil
}

func writeToJSONFile(fileName string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return fmt.Errorf("%w: error marshaling JSON: %s", models.ErrStorage, err)
	}

	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("%w: error opening file: %s", models.ErrStorage, err)
	}
	defer file.Close()

	if _, err := file.Write(jsonData); err != nil {
		return fmt.Errorf("%w: error writing to file: %s", models.ErrStorage, err)
	}

	return nil
}

func (db *JSONDB) flushUsers() error {
	if db.dataDir == "" {
		return nil
	}
	return writeToJSONFile(db.usersFile(), db.Cache.Users)
}

func (db *JSONDB) flushRecords() error {
	if db.dataDir == "" {
		return nil
	}
	return writeToJSONFile(db.recordsFile(), db.Cache.Records)
}

func (db *JSONDB) FindUser(ctx context.Context, username string) (*user.User, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	hash, found := db.Cache.Users[username]
	if !found {
		return nil, false, nil
	}

	return &user.User{Username: username, PasswordHash: hash}, true, nil
}

func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.Cache.Users[usr.Username]; exists {
		return models.ErrUserAlreadyExists
	}
	db.Cache.Users[usr.Username] = usr.PasswordHash

	return db.flushUsers()
}

func (db *JSONDB) CreateRecord(ctx context.Context, rec *record.Record) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	ownerRecords, ok := db.Cache.Records[rec.Owner]
	if !ok {
		ownerRecords = map[string]recordEntry{}
		db.Cache.Records[rec.Owner] = ownerRecords
	}
	ownerRecords[rec.ID] = recordEntry{
		Link:      rec.Link,
		ImagePath: rec.ImagePath,
		CreatedAt: rec.CreatedAt,
	}

	return db.flushRecords()
}

func (db *JSONDB) FindRecordsByOwner(ctx context.Context, owner string) ([]record.Record, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := []record.Record{}
	for id, entry := range db.Cache.Records[owner] {
		result = append(result, toRecord(id, owner, entry))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (db *JSONDB) FindRecord(ctx context.Context, id, owner string) (*record.Record, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	entry, found := db.Cache.Records[owner][id]
	if !found {
		return nil, false, nil
	}
	rec := toRecord(id, owner, entry)

	return &rec, true, nil
}

func (db *JSONDB) FindRecordByID(ctx context.Context, id string) (*record.Record, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for owner, ownerRecords := range db.Cache.Records {
		if entry, found := ownerRecords[id]; found {
			rec := toRecord(id, owner, entry)
			return &rec, true, nil
		}
	}

	return nil, false, nil
}

func (db *JSONDB) DeleteRecord(ctx context.Context, id, owner string) (*record.Record, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	entry, found := db.Cache.Records[owner][id]
	if !found {
		return nil, false, nil
	}
	delete(db.Cache.Records[owner], id)
	rec := toRecord(id, owner, entry)

	return &rec, true, db.flushRecords()
}

func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return int64(len(db.Cache.Users)), nil
}

func (db *JSONDB) GetNumberOfRecords(ctx context.Context) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var total int64
	for _, ownerRecords := range db.Cache.Records {
		total += int64(len(ownerRecords))
	}

	return total, nil
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

func (db *JSONDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.flushUsers(); err != nil {
		return err
	}

	return db.flushRecords()
}

func toRecord(id, owner string, entry recordEntry) record.Record {
	return record.Record{
		ID:        id,
		Owner:     owner,
		Link:      entry.Link,
		CreatedAt: entry.CreatedAt,
		ImagePath: entry.ImagePath,
	}
}
