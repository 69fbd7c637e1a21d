package lib

import "github.com/pkg/errors"

var (
	// ErrInvalidInput is returned for malformed scan input: empty grids, empty
	// colour sets, or colours whose channel count does not match the grid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfig is returned for invalid options or configuration files.
	ErrConfig = errors.New("invalid configuration")
)
