package domain

import "errors"

// Usage errors: the session was driven out of order.
var (
	ErrNoActiveRun      = errors.New("no active run")
	ErrRewardAlreadySet = errors.New("reward already set for this run")
)

// Validation errors: the call site passed something unacceptable.
var (
	ErrInvalidParamName        = errors.New("parameter name must be a non-empty string")
	ErrDuplicateParam          = errors.New("parameter already declared this run")
	ErrRewardShape             = errors.New("reward must be a number or a one-dimensional sequence of numbers")
	ErrUnknownBackend          = errors.New("backend not registered")
	ErrUnknownAlgorithm        = errors.New("algorithm not registered")
	ErrUnsupportedDistribution = errors.New("distribution not supported by backend")
	ErrUnrepresentableValue    = errors.New("value cannot be represented in the data file")
	ErrNoRewardedExamples      = errors.New("no examples with a recorded reward")
	ErrNoRecordedValue         = errors.New("no recorded value for parameter and no guess provided")
)

// Storage errors: fatal, surfaced to the caller without retry.
var (
	ErrLockTimeout   = errors.New("timed out waiting for data file lock")
	ErrMalformedData = errors.New("malformed data file")
)
