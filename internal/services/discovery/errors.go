package discovery

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrDependenciesNil   = errors.New("discovery dependencies are not configured")
	ErrSessionClosed     = errors.New("discovery session closed")
	ErrNoActiveCandidate = errors.New("no active candidate")
	ErrNothingToUndo     = errors.New("nothing to undo")
	ErrSuperlikeFunds    = errors.New("insufficient funds for superlike")
	ErrRekindleFunds     = errors.New("insufficient funds for rekindle")

	errStaleGeneration = errors.New("stale fetch generation")
)

type Feature string

const (
	FeatureSuperlike Feature = "superlike"
	FeatureRekindle  Feature = "rekindle"
)

type InsufficientFundsError struct {
	Feature  Feature
	Required int64
	Balance  int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for %s: need %d, have %d", e.Feature, e.Required, e.Balance)
}

func (e *InsufficientFundsError) Is(target error) bool {
	switch e.Feature {
	case FeatureSuperlike:
		return target == ErrSuperlikeFunds
	case FeatureRekindle:
		return target == ErrRekindleFunds
	default:
		return false
	}
}

func AsInsufficientFunds(err error) (*InsufficientFundsError, bool) {
	var target *InsufficientFundsError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

type ConcurrentCommitError struct {
	Position int
}

func (e *ConcurrentCommitError) Error() string {
	return fmt.Sprintf("a decision for position %d is already in flight", e.Position)
}

func IsConcurrentCommit(err error) bool {
	var target *ConcurrentCommitError
	return errors.As(err, &target)
}

type TooFastError struct {
	RetryAfterSec int64
}

func (e TooFastError) Error() string {
	return "too fast"
}

func (e TooFastError) RetryAfter() int64 {
	if e.RetryAfterSec <= 0 {
		return 1
	}
	return e.RetryAfterSec
}

func IsTooFast(err error) (*TooFastError, bool) {
	var tf TooFastError
	if errors.As(err, &tf) {
		return &tf, true
	}
	return nil, false
}

type FetchKind string

const (
	// FetchInitial failures replace the feed with a full-screen error.
	FetchInitial FetchKind = "initial"
	// FetchPage failures keep the feed usable and are retried later.
	FetchPage FetchKind = "page"
)

type NetworkError struct {
	Kind FetchKind
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch candidates (%s): %v", e.Kind, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func AsNetworkError(err error) (*NetworkError, bool) {
	var target *NetworkError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
