package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrRepository = errors.New("repository error")
	ErrTransport  = errors.New("transport error")
	ErrProvider   = errors.New("metadata provider error")
	ErrBusy       = errors.New("operation already running")
)

// The wrapped cause stays reachable through errors.Is so callers can still
// tell domain.ErrNotFound apart from an outage.

func wrapRepo(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRepository, err)
}

func wrapTransport(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func wrapProvider(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrProvider, err)
}
