// Package user defines the user model used throughout the application,
// particularly for authentication and per-user QR record ownership.
package user

// User represents a system user.
type User struct {
	// Username is the unique identifier of the user. The signup form labels
	// it "email", but it is stored and compared as an opaque string.
	Username string

	// PasswordHash is the bcrypt digest of the user's password. Plaintext
	// passwords are never persisted.
	PasswordHash string
}
