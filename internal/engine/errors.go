package engine

import "errors"

// Engine errors
var (
	// ErrInvalidTickRange is returned when minTicksProfit >= maxTicksProfit.
	ErrInvalidTickRange = errors.New("minimum profit ticks must be below maximum profit ticks")
	// ErrEmptyResult is returned when a run produced no variations or no trades,
	// or when variation sequences disagree in length.
	ErrEmptyResult = errors.New("simulation produced no usable data")
	// ErrNoSelection is returned when metrics are requested for an empty subset.
	ErrNoSelection = errors.New("no variations selected")
	// ErrUnknownVariation is returned when a selected id is not in the result.
	ErrUnknownVariation = errors.New("unknown variation")
	// ErrNoResult is returned when the store has not been populated yet.
	ErrNoResult = errors.New("no simulation has been run")
)
