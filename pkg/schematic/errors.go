package schematic

import "github.com/pkg/errors"

// Registry violations surface as wrapped sentinels so callers can test
// with errors.Is.
var (
	ErrDuplicateModule = errors.New("duplicate module name")
	ErrDuplicateSignal = errors.New("duplicate signal name")
	ErrDuplicatePart   = errors.New("duplicate part name")
	ErrUnknownSignal   = errors.New("unknown signal")
	ErrNoGround        = errors.New("no ground reference")
	ErrSignalWidth     = errors.New("analog nets must have width 1")
	ErrBadName         = errors.New("invalid name")
)

// Must unwraps a constructor result, panicking on error. Script-style
// circuit builders use it to keep declarations on one line.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
