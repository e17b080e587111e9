// File: protocol/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import "github.com/pkg/errors"

// ParseError marks a malformed or over-limit request.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return e.Msg }

var (
	ErrMalformedRequestLine = &ParseError{"malformed request line"}
	ErrUnsupportedVersion   = &ParseError{"unsupported protocol version"}
	ErrMalformedHeader      = &ParseError{"malformed header field"}
	ErrHeaderTooLarge       = &ParseError{"header block too large"}
	ErrBadContentLength     = &ParseError{"bad content length"}
	ErrBodyTooLarge         = &ParseError{"body too large"}
	ErrBadTransferEncoding  = &ParseError{"unsupported transfer encoding"}
	ErrBadChunkedBody       = &ParseError{"malformed chunked body"}
)

// IsParseError reports whether err (or its cause) is a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
