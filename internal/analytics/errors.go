package analytics

import "errors"

// Experiment validation errors.
var (
	ErrExperimentName       = errors.New("experiment name is required")
	ErrInsufficientVariants = errors.New("experiment needs at least 2 strategies")
	ErrSplitMismatch        = errors.New("traffic split must match strategy count")
	ErrSplitSum             = errors.New("traffic split must sum to 100")
	ErrInvalidStrategy      = errors.New("unknown compression strategy")
	ErrInvalidDuration      = errors.New("experiment duration must be positive")
	ErrEmptyParticipant     = errors.New("participant id is required")
)

// Experiment lifecycle errors.
var (
	ErrExperimentExists   = errors.New("experiment already exists")
	ErrExperimentNotFound = errors.New("experiment not found")
	ErrExperimentEnded    = errors.New("experiment has ended")
	ErrStrategyNotInExp   = errors.New("strategy not in experiment")
)

// Record log errors.
var (
	ErrRecordNotFound = errors.New("compression record not found")
	ErrOutcomeSet     = errors.New("outcome already recorded")
)
