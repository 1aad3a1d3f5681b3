package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrAlreadyCompleted: the mission already has a completion for that day. Benign.
	ErrAlreadyCompleted = errors.New("mission already completed today")
	// ErrNotAuthenticated: no resolved user id.
	ErrNotAuthenticated = errors.New("user is not authenticated")
	// ErrInsufficientTokens: a perk costs more power tokens than the user holds.
	ErrInsufficientTokens = errors.New("not enough power tokens")
	// ErrInsufficientSeeds: a wager exceeds the seeds the user holds.
	ErrInsufficientSeeds = errors.New("not enough seeds for this wager")
	ErrShieldUnavailable = errors.New("streak shield already used this week")
	ErrWagerActive       = errors.New("a wager is already active")
	ErrNoActiveWager     = errors.New("no active wager")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidMood       = errors.New("mood must be between 1 and 5")
	ErrUserNotFound      = errors.New("no progress record for user")

	ErrMissionNotFound     = errors.New("mission not found")
	ErrMissionNotScheduled = errors.New("mission is not scheduled today")
	ErrPremiumRequired     = errors.New("mission requires premium")
)

// StorageError wraps any persistence failure. Callers should surface it as retryable.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// storageErr wraps err unless it is nil or already one of ours.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err came from the persistence layer.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func isDomainError(err error) bool {
	for _, target := range []error{
		ErrAlreadyCompleted, ErrNotAuthenticated, ErrInsufficientTokens, ErrInsufficientSeeds,
		ErrShieldUnavailable, ErrWagerActive, ErrNoActiveWager, ErrInvalidAmount, ErrInvalidMood, ErrUserNotFound,
		ErrMissionNotFound, ErrMissionNotScheduled, ErrPremiumRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
