package session

import "errors"

var (
	ErrLockedField = errors.New("field is fixed by the selected scenario")
	ErrNoResult    = errors.New("no simulation result yet")
)
