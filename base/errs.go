package base

import "errors"

// Codec and framing error taxonomy. Decode paths wrap these with fmt.Errorf
// so callers can both match with errors.Is and read what happened.
var (
	// ErrTruncatedInput means fewer bytes were available than a declared
	// length required. Recoverable by supplying more data, never by guessing.
	ErrTruncatedInput = errors.New("truncated input")
	// ErrInvalidTag means an unrecognized discriminant byte.
	ErrInvalidTag = errors.New("invalid tag")
	// ErrInvalidFieldValue means malformed or out-of-range content, e.g. a
	// bit-count mismatch or an invalid calendar field.
	ErrInvalidFieldValue = errors.New("invalid field value")
	// ErrKeySelectorMismatch means a global envelope was decoded as dedicated
	// or vice versa.
	ErrKeySelectorMismatch = errors.New("key selector mismatch")
	// ErrUnsupportedEncoding marks encodings this library refuses to guess at,
	// e.g. compact arrays.
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
	// ErrKeyEpochExhausted means the frame counter would wrap; the association
	// must be re-keyed before any counter value is reused.
	ErrKeyEpochExhausted = errors.New("key epoch exhausted")
)

var ErrNothingToRead = errors.New("nothing to read")
var ErrNotOpened = errors.New("connection is not open")
var ErrCommunicationTimeout = errors.New("communication timeout")
