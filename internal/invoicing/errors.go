package invoicing

import "errors"

// ErrNotImplemented is returned by operations Holvi does not support through this client.
var ErrNotImplemented = errors.New("not implemented")

// Error is a domain error raised locally before anything is sent to Holvi.
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return "holvi: " + e.Msg
}
