package integration

import "errors"

var (
	// ErrNotConfigured means neither the tenant nor the environment provides OAuth app credentials.
	ErrNotConfigured = errors.New("pipedrive oauth app is not configured")
	// ErrInvalidState is returned for an unknown, reused or expired OAuth state.
	ErrInvalidState = errors.New("invalid or expired oauth state")
	// ErrNotConnected is returned when the tenant has no connection.
	ErrNotConnected = errors.New("pipedrive is not connected")
)
