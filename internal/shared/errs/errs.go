// Package errs defines the error taxonomy shared by the wallet core.
//
// Each failure class is a sentinel that callers test with errors.Is,
// while the constructors attach operation-specific detail. The HTTP
// layer maps sentinels to status codes; everything below it only ever
// wraps and classifies.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad caller input (short password, malformed
	// address). Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrAuthentication marks a wrong password or ciphertext tag
	// mismatch. The session stays locked.
	ErrAuthentication = errors.New("authentication failed")

	// ErrWalletLocked marks an operation that needs the unlocked session.
	ErrWalletLocked = errors.New("wallet is locked")

	// ErrNoWallet marks an operation against a missing wallet record.
	ErrNoWallet = errors.New("no wallet found")

	// ErrWalletExists marks create/import while a record already exists.
	ErrWalletExists = errors.New("wallet already exists")

	// ErrInvalidKeyFormat marks an imported key that fails the network's
	// canonical prefix/length check.
	ErrInvalidKeyFormat = errors.New("invalid key format")

	// ErrInvalidPassword marks a failed unlock attempt.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrNotConnected marks a dapp call from an origin without a grant.
	ErrNotConnected = errors.New("origin not connected")

	// ErrPermissionDenied marks a rejected approval request.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTimeout marks an approval request that expired unanswered.
	ErrTimeout = errors.New("request timed out")

	// ErrNetwork marks a failed round trip to the blockchain node.
	ErrNetwork = errors.New("network error")
)

// Validation wraps ErrValidation with detail.
func Validation(format string, args ...interface{}) error {
	return wrap(ErrValidation, format, args...)
}

// Authentication wraps ErrAuthentication with detail.
func Authentication(format string, args ...interface{}) error {
	return wrap(ErrAuthentication, format, args...)
}

// InvalidKeyFormat wraps ErrInvalidKeyFormat with detail.
func InvalidKeyFormat(format string, args ...interface{}) error {
	return wrap(ErrInvalidKeyFormat, format, args...)
}

// PermissionDenied wraps ErrPermissionDenied with detail.
func PermissionDenied(format string, args ...interface{}) error {
	return wrap(ErrPermissionDenied, format, args...)
}

// Timeout wraps ErrTimeout with detail.
func Timeout(format string, args ...interface{}) error {
	return wrap(ErrTimeout, format, args...)
}

// Network wraps ErrNetwork around a transport failure.
func Network(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

func wrap(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
