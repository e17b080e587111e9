// File: protocol/response.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Response model and deterministic HTTP/1.x serializer.

package protocol

import (
	"bufio"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Response is built by a handler and owned by the session once emitted.
type Response struct {
	StatusCode int
	// Reason defaults to the canonical status text.
	Reason     string
	ProtoMajor int
	ProtoMinor int
	Header     Header
	Body       []byte
	KeepAlive  bool
}

// NewResponse prepares a response to req carrying its protocol version and
// keep-alive decision.
func NewResponse(req *Request, status int) *Response {
	resp := &Response{StatusCode: status, ProtoMajor: 1, ProtoMinor: 1}
	if req != nil {
		resp.ProtoMajor, resp.ProtoMinor = req.ProtoMajor, req.ProtoMinor
		resp.KeepAlive = req.KeepAlive
	}
	return resp
}

// SetBody stores body and its content type.
func (r *Response) SetBody(contentType string, body []byte) {
	if contentType != "" {
		r.Header.Set(HeaderContentType, contentType)
	}
	r.Body = body
}

// ContentLength is always the actual body length.
func (r *Response) ContentLength() int64 {
	return int64(len(r.Body))
}

// CloseAfterSend reports whether the connection must close once r is written.
func (r *Response) CloseAfterSend() bool {
	return !r.KeepAlive
}

// AppendHead appends the status line and header block, including the final
// empty line, to dst. Caller-supplied Content-Length and Connection fields are
// replaced by values derived from the body and KeepAlive.
func (r *Response) AppendHead(dst []byte) []byte {
	major, minor := r.ProtoMajor, r.ProtoMinor
	if major == 0 {
		major, minor = 1, 1
	}
	reason := r.Reason
	if reason == "" {
		reason = http.StatusText(r.StatusCode)
	}
	dst = append(dst, "HTTP/"...)
	dst = strconv.AppendInt(dst, int64(major), 10)
	dst = append(dst, '.')
	dst = strconv.AppendInt(dst, int64(minor), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(r.StatusCode), 10)
	dst = append(dst, ' ')
	dst = append(dst, reason...)
	dst = append(dst, "\r\n"...)

	for _, f := range r.Header {
		if strings.EqualFold(f.Name, HeaderContentLength) ||
			strings.EqualFold(f.Name, HeaderConnection) ||
			strings.EqualFold(f.Name, HeaderTransferEncoding) {
			continue
		}
		dst = append(dst, f.Name...)
		dst = append(dst, ": "...)
		dst = append(dst, f.Value...)
		dst = append(dst, "\r\n"...)
	}
	dst = append(dst, "Content-Length: "...)
	dst = strconv.AppendInt(dst, r.ContentLength(), 10)
	dst = append(dst, "\r\nConnection: "...)
	if r.KeepAlive {
		dst = append(dst, "keep-alive"...)
	} else {
		dst = append(dst, "close"...)
	}
	dst = append(dst, "\r\n\r\n"...)
	return dst
}

// WriteResponse serializes r through bw and flushes it.
func WriteResponse(bw *bufio.Writer, r *Response) error {
	head := r.AppendHead(make([]byte, 0, 256))
	if _, err := bw.Write(head); err != nil {
		return err
	}
	if len(r.Body) > 0 {
		if _, err := bw.Write(r.Body); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteTo implements io.WriterTo.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	head := r.AppendHead(make([]byte, 0, 256))
	n, err := w.Write(head)
	if err != nil || len(r.Body) == 0 {
		return int64(n), err
	}
	m, err := w.Write(r.Body)
	return int64(n + m), err
}
