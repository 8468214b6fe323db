// Package service implements the application operations on top of the
// storage interface: account management, QR record lifecycle, and the
// bitmap-producing paths. Handlers stay thin; everything they do beyond
// form parsing and redirects lives here.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	funk "github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/qrvault/internal/auth"
	"github.com/patric-chuzhbe/qrvault/internal/models"
	"github.com/patric-chuzhbe/qrvault/internal/qrimage"
	"github.com/patric-chuzhbe/qrvault/internal/record"
	"github.com/patric-chuzhbe/qrvault/internal/user"
)

const (
	downloadFilenamePrefix  = "qr_code_"
	downloadFilenameMaxLen  = 30
	downloadCaptionedSuffix = "_with_caption"

	createdAtDisplayFormat = "2006-01-02 15:04:05"
)

type storage interface {
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
}

// imageCacher maps a record id to the on-disk location of its cached bitmap.
// The file-backed storage implements it; other backings render on demand.
type imageCacher interface {
	ImageFileName(id string) string
}

// imageRemover disposes of cached bitmap files after record deletion.
type imageRemover interface {
	EnqueueJob(path string)
}

type Service struct {
	db      storage
	cacher  imageCacher
	remover imageRemover
}

// New creates the Service. cacher may be nil, in which case bitmaps are
// rendered on every access instead of being cached on disk.
func New(db storage, cacher imageCacher, remover imageRemover) *Service {
	return &Service{
		db:      db,
		cacher:  cacher,
		remover: remover,
	}
}

// SignUp registers a new account with a hashed password. The username slot
// must be free; a collision returns models.ErrUserAlreadyExists.
func (s *Service) SignUp(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("%w: empty username or password", models.ErrInvalidInput)
	}

	_, exists, err := s.db.FindUser(ctx, username)
	if err != nil {
		return err
	}
	if exists {
		return models.ErrUserAlreadyExists
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	return s.db.CreateUser(ctx, &user.User{
		Username:     username,
		PasswordHash: passwordHash,
	})
}

// VerifyLogin reports whether the submitted credentials match a stored
// account. A missing user and a wrong password are indistinguishable to the
// caller.
func (s *Service) VerifyLogin(ctx context.Context, username, password string) (bool, error) {
	usr, found, err := s.db.FindUser(ctx, username)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	return auth.CheckPassword(usr.PasswordHash, password), nil
}

// GenerateQR creates a new record owned by owner. With a cacher configured
// the bitmap is rendered once here and kept on disk; otherwise rendering is
// deferred to access time.
func (s *Service) GenerateQR(ctx context.Context, owner, link string) (*record.Record, error) {
	if link == "" {
		return nil, fmt.Errorf("%w: empty link", models.ErrInvalidInput)
	}

	rec := &record.Record{
		ID:        uuid.New().String(),
		Owner:     owner,
		Link:      link,
		CreatedAt: time.Now(),
	}

	if s.cacher != nil {
		pngData, err := qrimage.RenderPNG(link, false)
		if err != nil {
			return nil, err
		}
		imagePath := s.cacher.ImageFileName(rec.ID)
		if err := os.WriteFile(imagePath, pngData, 0644); err != nil {
			return nil, fmt.Errorf("%w: error caching image: %s", models.ErrStorage, err)
		}
		rec.ImagePath = imagePath
	}

	if err := s.db.CreateRecord(ctx, rec); err != nil {
		return nil, err
	}

	return rec, nil
}

// DashboardRows returns the owner's records as view rows, newest first.
func (s *Service) DashboardRows(ctx context.Context, owner string) ([]models.DashboardRow, error) {
	records, err := s.db.FindRecordsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	rows := funk.Map(records, func(rec record.Record) models.DashboardRow {
		return models.DashboardRow{
			ID:         rec.ID,
			Link:       rec.Link,
			DisplayURL: DisplayURL(rec.Link),
			CreatedAt:  rec.CreatedAt.Format(createdAtDisplayFormat),
		}
	}).([]models.DashboardRow)

	return rows, nil
}

// DeleteQR removes the record if, and only if, it belongs to owner. Deleting
// someone else's record (or a missing id) is a no-op. A cached bitmap is
// handed to the sweeper.
func (s *Service) DeleteQR(ctx context.Context, id, owner string) error {
	rec, found, err := s.db.DeleteRecord(ctx, id, owner)
	if err != nil {
		return err
	}
	if found && s.remover != nil {
		s.remover.EnqueueJob(rec.ImagePath)
	}

	return nil
}

// DownloadQR renders the owner's record as an attachment: the PNG bytes plus
// the derived download filename.
func (s *Service) DownloadQR(ctx context.Context, id, owner, captionType string) ([]byte, string, error) {
	if !funk.ContainsString(
		[]string{models.CaptionTypeWith, models.CaptionTypeWithout},
		captionType,
	) {
		return nil, "", fmt.Errorf("%w: unknown caption type %q", models.ErrInvalidInput, captionType)
	}

	rec, found, err := s.db.FindRecord(ctx, id, owner)
	if err != nil {
		return nil, "", err
	}
	if !found {
		return nil, "", models.ErrNotFound
	}

	withCaption := captionType == models.CaptionTypeWith

	pngData, err := s.recordPNG(rec, withCaption)
	if err != nil {
		return nil, "", err
	}

	return pngData, DownloadFilename(rec.Link, withCaption), nil
}

// InlineImage returns the PNG for the public inline-image route. Lookup is
// by id only; the route serves dashboard <img> tags and has no owner scope.
func (s *Service) InlineImage(ctx context.Context, id string) ([]byte, error) {
	rec, found, err := s.db.FindRecordByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrNotFound
	}

	return s.recordPNG(rec, false)
}

// recordPNG prefers a cached bitmap when one exists and the plain symbol is
// wanted; captioned output is always rendered fresh.
func (s *Service) recordPNG(rec *record.Record, withCaption bool) ([]byte, error) {
	if !withCaption && rec.ImagePath != "" {
		pngData, err := os.ReadFile(rec.ImagePath)
		if err == nil {
			return pngData, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: error reading cached image: %s", models.ErrStorage, err)
		}
	}

	return qrimage.RenderPNG(rec.Link, withCaption)
}

// Stats reports totals for the internal stats endpoint.
func (s *Service) Stats(ctx context.Context) (*models.StatsResponse, error) {
	users, err := s.db.GetNumberOfUsers(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.db.GetNumberOfRecords(ctx)
	if err != nil {
		return nil, err
	}

	return &models.StatsResponse{
		Users:   users,
		QRCodes: records,
	}, nil
}

// Ping proxies the storage health check.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// DisplayURL strips the protocol prefix from a link for cleaner listing.
func DisplayURL(link string) string {
	result := strings.ReplaceAll(link, "https://", "")

	return strings.ReplaceAll(result, "http://", "")
}

// DownloadFilename derives the attachment filename from the link text:
// every non-alphanumeric character becomes an underscore and the result is
// capped at 30 characters, with a suffix when a caption was requested.
func DownloadFilename(link string, withCaption bool) string {
	safe := make([]rune, 0, len(link))
	for _, r := range link {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			safe = append(safe, r)
		} else {
			safe = append(safe, '_')
		}
	}
	if len(safe) > downloadFilenameMaxLen {
		safe = safe[:downloadFilenameMaxLen]
	}

	suffix := ""
	if withCaption {
		suffix = downloadCaptionedSuffix
	}

	return downloadFilenamePrefix + string(safe) + suffix + ".png"
}
