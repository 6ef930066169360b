package transport

import "errors"

// Framing errors. A framing error ends input processing; the connection does
// not attempt to resynchronise on the next header.
var (
	ErrMalformedHeader      = errors.New("malformed header")
	ErrUnknownHeader        = errors.New("unknown header")
	ErrDuplicateHeader      = errors.New("duplicate header")
	ErrMissingContentLength = errors.New("missing Content-Length header")
	ErrContentTooLarge      = errors.New("content length exceeds limit")
	ErrTruncatedBody        = errors.New("truncated message body")
	ErrInvalidBody          = errors.New("message body is not a JSON object")
)
