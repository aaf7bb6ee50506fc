package domain

import "errors"

// Failure kinds shared by every component. Callers inspect them with errors.Is;
// the concrete cause stays wrapped underneath.
var (
	// ErrInvalidInput is returned for a missing required argument (empty
	// ciphertext, empty SQL).
	ErrInvalidInput = errors.New("invalid input")

	// ErrMisconfiguredKey is returned when the symmetric key is absent or not 32 bytes.
	ErrMisconfiguredKey = errors.New("encryption key misconfigured")

	// ErrCrypto covers decoding, decryption and unpadding failures.
	ErrCrypto = errors.New("decryption failure")

	// ErrDriver wraps any error surfaced by the pool or the MySQL driver.
	ErrDriver = errors.New("database driver error")

	// ErrNotFound signals an empty result. It is not a failure.
	ErrNotFound = errors.New("resource not found")

	// ErrLastInsertIDUnknown means the statement was committed but the
	// generated id could not be read back. Callers must not retry the insert.
	ErrLastInsertIDUnknown = errors.New("statement committed but last insert id unknown")

	ErrMailNotConfigured = errors.New("mail transport not configured")
	ErrMailDelivery      = errors.New("mail delivery failure")
)
