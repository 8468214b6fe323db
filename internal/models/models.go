package models

import "errors"

// ErrNotFound is returned when a record or user is absent, or when a record
// exists but belongs to a different owner. Both cases produce the same
// external signal.
var ErrNotFound = errors.New("not found")

// ErrUserAlreadyExists is returned on a signup collision.
var ErrUserAlreadyExists = errors.New("user already exists")

// ErrStorage marks backing-store connection or query failures.
// Concrete errors wrap it, so callers check with errors.Is.
var ErrStorage = errors.New("storage failure")

// ErrInvalidInput is returned for an empty link on generate or an
// unrecognized caption-type token.
var ErrInvalidInput = errors.New("invalid input")

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

// Caption-type tokens accepted by the download route.
const (
	CaptionTypeWith    = "with-caption"
	CaptionTypeWithout = "no-caption"
)

type SignupForm struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

type GenerateForm struct {
	Link string `validate:"required"`
}

// DashboardRow is the view model for a single record on the dashboard page.
type DashboardRow struct {
	ID         string
	Link       string
	DisplayURL string
	CreatedAt  string
}

// StatsResponse is the payload of the trusted-subnet internal stats endpoint.
type StatsResponse struct {
	Users   int64 `json:"users"`
	QRCodes int64 `json:"qr_codes"`
}
