package engine

import "errors"

var (
	// ErrNotReady is returned when the host map cannot render yet.
	ErrNotReady = errors.New("host map not ready")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine closed")
	// ErrInvalidTier is returned for tiers outside 1..8.
	ErrInvalidTier = errors.New("invalid tier")
	// ErrInvalidColor is returned for colors that are not #RRGGBB.
	ErrInvalidColor = errors.New("invalid color")
)
