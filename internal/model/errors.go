package model

import "errors"

// Common errors used across the application
var (
	// User errors
	ErrUserNotFound         = errors.New("user not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// Store errors
	ErrVersionConflict = errors.New("user was modified concurrently")
	ErrEmptyBatch      = errors.New("batch has no operations")
	ErrBatchTooLarge   = errors.New("batch exceeds maximum write count")

	// Settlement errors
	ErrPlanNotFound  = errors.New("settlement plan not found")
	ErrUnknownPeriod = errors.New("unknown settlement period")

	// Configuration errors
	ErrMissingCredentials = errors.New("store credentials not set")
	ErrInvalidCredentials = errors.New("store credentials are invalid")
	ErrInvalidRewardTable = errors.New("invalid reward table")
)
