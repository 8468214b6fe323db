// Package record defines the saved-link model: one QR record per saved
// link, owned by the user who created it.
package record

import "time"

// Record is a single saved link with its generated QR identity.
type Record struct {
	// ID is an opaque unique token (a UUID string), allocated at creation
	// and immutable afterwards.
	ID string

	// Owner is the username of the creating user.
	Owner string

	// Link is the text encoded into the QR symbol. Immutable once created.
	Link string

	// CreatedAt orders the owner's records on the dashboard, newest first.
	CreatedAt time.Time

	// ImagePath is the location of a cached rendered bitmap. Empty for
	// backings that render on every access.
	ImagePath string
}
