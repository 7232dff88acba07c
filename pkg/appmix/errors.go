package appmix

import "errors"

var (
	// ErrConnection is returned when the audio server is unreachable or the handshake failed.
	// The Engine that produced it must be discarded.
	ErrConnection = errors.New("audio server connection failed")

	// ErrNotConnected is returned by any operation attempted while the connection isn't ready
	ErrNotConnected = errors.New("not connected to audio server")

	// ErrEnumeration is returned when the server reports an error while listing streams
	ErrEnumeration = errors.New("stream enumeration failed")

	// ErrInvalidArgument is returned for out-of-range input, before anything is sent to the server
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is only returned with strict lookups enabled, or by lookups that must yield a value
	ErrNotFound = errors.New("stream not found")
)
