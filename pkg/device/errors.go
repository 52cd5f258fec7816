package device

import "errors"

var (
	ErrUnknownFramework  = errors.New("unknown framework")
	ErrNoActiveFramework = errors.New("no active framework")
	ErrUnsupported       = errors.New("command not supported by backend")
	ErrUnknownProperty   = errors.New("unknown property")
	ErrInvalidValue      = errors.New("invalid property value")
)
