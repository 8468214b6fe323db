package service

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/qrvault/internal/db/memorystorage"
	"github.com/patric-chuzhbe/qrvault/internal/mockstorage"
	"github.com/patric-chuzhbe/qrvault/internal/models"
)

type testCacher struct {
	dir string
}

func (c *testCacher) ImageFileName(id string) string {
	return filepath.Join(c.dir, id+".png")
}

type testRemover struct {
	enqueued []string
}

func (r *testRemover) EnqueueJob(path string) {
	if path != "" {
		r.enqueued = append(r.enqueued, path)
	}
}

func newMemoryService(t *testing.T) *Service {
	t.Helper()
	theStorage, err := memorystorage.New()
	require.NoError(t, err)

	return New(theStorage, nil, nil)
}

func TestSignUpAndVerifyLogin(t *testing.T) {
	theService := newMemoryService(t)

	err := theService.SignUp(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)

	err = theService.SignUp(context.Background(), "alice@example.com", "other")
	assert.ErrorIs(t, err, models.ErrUserAlreadyExists)

	verified, err := theService.VerifyLogin(context.Background(), "alice@example.com", "secret")
	assert.NoError(t, err)
	assert.True(t, verified)

	verified, err = theService.VerifyLogin(context.Background(), "alice@example.com", "wrong")
	assert.NoError(t, err)
	assert.False(t, verified)

	verified, err = theService.VerifyLogin(context.Background(), "nobody@example.com", "secret")
	assert.NoError(t, err)
	assert.False(t, verified)
}

func TestSignUpRejectsEmptyInput(t *testing.T) {
	theService := newMemoryService(t)

	assert.ErrorIs(
		t,
		theService.SignUp(context.Background(), "", "secret"),
		models.ErrInvalidInput,
	)
	assert.ErrorIs(
		t,
		theService.SignUp(context.Background(), "alice@example.com", ""),
		models.ErrInvalidInput,
	)
}

func TestGenerateQRRejectsEmptyLink(t *testing.T) {
	theService := newMemoryService(t)

	_, err := theService.GenerateQR(context.Background(), "alice", "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	rows, err := theService.DashboardRows(context.Background(), "alice")
	assert.NoError(t, err)
	assert.Empty(t, rows, "no record should be created from empty input")
}

func TestGenerateQRWithCacherWritesImage(t *testing.T) {
	theStorage, err := memorystorage.New()
	require.NoError(t, err)
	cacher := &testCacher{dir: t.TempDir()}

	theService := New(theStorage, cacher, nil)

	rec, err := theService.GenerateQR(context.Background(), "alice", "https://example.com")
	require.NoError(t, err)
	require.NotEmpty(t, rec.ImagePath)

	pngData, err := os.ReadFile(rec.ImagePath)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(pngData))
	assert.NoError(t, err, "the cached file should be a valid PNG")
}

func TestDashboardRows(t *testing.T) {
	theService := newMemoryService(t)

	_, err := theService.GenerateQR(context.Background(), "alice", "https://example.com/first")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = theService.GenerateQR(context.Background(), "alice", "http://example.com/second")
	require.NoError(t, err)
	_, err = theService.GenerateQR(context.Background(), "bob", "https://example.com/foreign")
	require.NoError(t, err)

	rows, err := theService.DashboardRows(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "example.com/second", rows[0].DisplayURL, "newest first, protocol stripped")
	assert.Equal(t, "example.com/first", rows[1].DisplayURL)
}

func TestDownloadQR(t *testing.T) {
	theService := newMemoryService(t)

	rec, err := theService.GenerateQR(context.Background(), "alice", "https://example.com")
	require.NoError(t, err)

	pngData, filename, err := theService.DownloadQR(
		context.Background(),
		rec.ID,
		"alice",
		models.CaptionTypeWithout,
	)
	require.NoError(t, err)
	assert.Equal(t, "qr_code_https___example_com.png", filename)

	plain, err := png.Decode(bytes.NewReader(pngData))
	require.NoError(t, err)

	pngData, filename, err = theService.DownloadQR(
		context.Background(),
		rec.ID,
		"alice",
		models.CaptionTypeWith,
	)
	require.NoError(t, err)
	assert.Equal(t, "qr_code_https___example_com_with_caption.png", filename)

	captioned, err := png.Decode(bytes.NewReader(pngData))
	require.NoError(t, err)
	assert.Equal(t, plain.Bounds().Dy()+40, captioned.Bounds().Dy())
}

func TestDownloadQRUnknownCaptionType(t *testing.T) {
	theService := newMemoryService(t)

	_, _, err := theService.DownloadQR(context.Background(), "some-id", "alice", "sideways")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestDownloadQROwnershipIsolation(t *testing.T) {
	theService := newMemoryService(t)

	rec, err := theService.GenerateQR(context.Background(), "alice", "https://example.com")
	require.NoError(t, err)

	_, _, err = theService.DownloadQR(
		context.Background(),
		rec.ID,
		"mallory",
		models.CaptionTypeWithout,
	)
	assert.ErrorIs(t, err, models.ErrNotFound, "a guessed id must stay invisible to non-owners")
}

func TestDeleteQREnqueuesCachedImage(t *testing.T) {
	theStorage, err := memorystorage.New()
	require.NoError(t, err)
	cacher := &testCacher{dir: t.TempDir()}
	remover := &testRemover{}

	theService := New(theStorage, cacher, remover)

	rec, err := theService.GenerateQR(context.Background(), "alice", "https://example.com")
	require.NoError(t, err)

	// Mallory's delete attempt keeps the record and the cached file.
	err = theService.DeleteQR(context.Background(), rec.ID, "mallory")
	assert.NoError(t, err)
	assert.Empty(t, remover.enqueued)

	rows, err := theService.DashboardRows(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	err = theService.DeleteQR(context.Background(), rec.ID, "alice")
	assert.NoError(t, err)
	assert.Equal(t, []string{rec.ImagePath}, remover.enqueued)

	rows, err = theService.DashboardRows(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestInlineImageFallsBackToRendering(t *testing.T) {
	theService := newMemoryService(t)

	rec, err := theService.GenerateQR(context.Background(), "alice", "https://example.com")
	require.NoError(t, err)

	pngData, err := theService.InlineImage(context.Background(), rec.ID)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(pngData))
	assert.NoError(t, err)

	_, err = theService.InlineImage(context.Background(), "unknown-id")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStorageErrorsPropagate(t *testing.T) {
	theMock := &mockstorage.StorageMock{}
	theMock.On("FindUser", mock.Anything, "alice").
		Return(nil, false, models.ErrStorage)
	theMock.On("FindRecordsByOwner", mock.Anything, "alice").
		Return(nil, models.ErrStorage)

	theService := New(theMock, nil, nil)

	err := theService.SignUp(context.Background(), "alice", "secret")
	assert.ErrorIs(t, err, models.ErrStorage)

	_, err = theService.VerifyLogin(context.Background(), "alice", "secret")
	assert.ErrorIs(t, err, models.ErrStorage)

	_, err = theService.DashboardRows(context.Background(), "alice")
	assert.ErrorIs(t, err, models.ErrStorage)

	theMock.AssertExpectations(t)
}

func TestStats(t *testing.T) {
	theMock := &mockstorage.StorageMock{}
	theMock.On("GetNumberOfUsers", mock.Anything).Return(int64(2), nil)
	theMock.On("GetNumberOfRecords", mock.Anything).Return(int64(5), nil)

	theService := New(theMock, nil, nil)

	stats, err := theService.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Users)
	assert.Equal(t, int64(5), stats.QRCodes)
}

func TestDisplayURL(t *testing.T) {
	assert.Equal(t, "example.com", DisplayURL("https://example.com"))
	assert.Equal(t, "example.com", DisplayURL("http://example.com"))
	assert.Equal(t, "plain text", DisplayURL("plain text"))
}

func TestDownloadFilename(t *testing.T) {
	assert.Equal(
		t,
		"qr_code_https___example_com_path.png",
		DownloadFilename("https://example.com/path", false),
	)
	assert.Equal(
		t,
		"qr_code_abc_with_caption.png",
		DownloadFilename("abc", true),
	)

	long := DownloadFilename("https://example.com/"+string(bytes.Repeat([]byte{'x'}, 100)), false)
	assert.Len(t, long, len("qr_code_")+30+len(".png"))
}

func TestRecordPNGPrefersCachedFile(t *testing.T) {
	theStorage, err := memorystorage.New()
	require.NoError(t, err)
	cacher := &testCacher{dir: t.TempDir()}
	theService := New(theStorage, cacher, nil)

	rec, err := theService.GenerateQR(context.Background(), "alice", "https://example.com")
	require.NoError(t, err)

	cached, err := os.ReadFile(rec.ImagePath)
	require.NoError(t, err)

	served, err := theService.InlineImage(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, cached, served, "the cached bytes should be served verbatim")

	// With the cache file gone, serving falls back to on-demand rendering.
	require.NoError(t, os.Remove(rec.ImagePath))
	served, err = theService.InlineImage(context.Background(), rec.ID)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(served))
	assert.NoError(t, err)
}

func TestGenerateQRAllocatesUniqueIDs(t *testing.T) {
	theService := newMemoryService(t)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		rec, err := theService.GenerateQR(context.Background(), "alice", "https://example.com")
		require.NoError(t, err)
		assert.False(t, seen[rec.ID], "ids must be unique")
		seen[rec.ID] = true
	}
}
