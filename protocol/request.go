// File: protocol/request.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HTTP/1.x request model and incremental reader over a connection buffer.

package protocol

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpguts"
)

// maxLeadingEmptyLines bounds the CRLFs tolerated ahead of a request line.
const maxLeadingEmptyLines = 4

// Limits bounds the size of one request.
type Limits struct {
	MaxHeaderBytes int
	MaxBodyBytes   int64
}

// DefaultLimits mirrors the classic 8 KiB header / 1 MiB body request limits.
var DefaultLimits = Limits{
	MaxHeaderBytes: 8 << 10,
	MaxBodyBytes:   1 << 20,
}

// Request is one parsed request. It must be treated as read-only once
// returned by ReadRequest.
type Request struct {
	Method     string
	Target     string
	Proto      string
	ProtoMajor int
	ProtoMinor int
	Header     Header
	Body       []byte
	// ContentLength is the decoded body length.
	ContentLength int64
	KeepAlive     bool
	// Chunked is set when the body arrived with chunked transfer coding.
	Chunked    bool
	RemoteAddr string
}

// ReadRequest reads exactly one request from br.
//
// It returns io.EOF when the stream ends cleanly before the first byte of a
// request, io.ErrUnexpectedEOF when it ends inside one, a *ParseError
// (possibly wrapped) for malformed input and the transport error otherwise.
func ReadRequest(br *bufio.Reader, lim Limits) (*Request, error) {
	if lim.MaxHeaderBytes <= 0 {
		lim.MaxHeaderBytes = DefaultLimits.MaxHeaderBytes
	}
	if lim.MaxBodyBytes <= 0 {
		lim.MaxBodyBytes = DefaultLimits.MaxBodyBytes
	}
	lr := &lineReader{br: br, budget: lim.MaxHeaderBytes}

	var line []byte
	var err error
	for i := 0; ; i++ {
		line, err = lr.readLine()
		if err != nil {
			return nil, err
		}
		if len(line) > 0 {
			break
		}
		if i >= maxLeadingEmptyLines {
			return nil, ErrMalformedRequestLine
		}
	}

	req := &Request{}
	if err := parseRequestLine(req, string(line)); err != nil {
		return nil, err
	}
	if err := readHeader(lr, &req.Header); err != nil {
		return nil, err
	}
	if err := readBody(br, lr, req, lim.MaxBodyBytes); err != nil {
		return nil, err
	}
	req.KeepAlive = shouldKeepAlive(req.ProtoMajor, req.ProtoMinor, req.Header)
	return req, nil
}

func parseRequestLine(req *Request, line string) error {
	method, rest, ok1 := strings.Cut(line, " ")
	target, proto, ok2 := strings.Cut(rest, " ")
	if !ok1 || !ok2 || method == "" || target == "" {
		return errors.Wrapf(ErrMalformedRequestLine, "%q", line)
	}
	if !httpguts.ValidHeaderFieldName(method) {
		return errors.Wrapf(ErrMalformedRequestLine, "method %q", method)
	}
	for i := 0; i < len(target); i++ {
		if c := target[i]; c <= ' ' || c == 0x7f {
			return errors.Wrapf(ErrMalformedRequestLine, "target %q", target)
		}
	}
	major, minor, ok := http.ParseHTTPVersion(proto)
	if !ok {
		return errors.Wrapf(ErrMalformedRequestLine, "version %q", proto)
	}
	if major != 1 {
		return errors.Wrapf(ErrUnsupportedVersion, "%q", proto)
	}
	req.Method, req.Target, req.Proto = method, target, proto
	req.ProtoMajor, req.ProtoMinor = major, minor
	return nil
}

func readHeader(lr *lineReader, h *Header) error {
	for {
		line, err := lr.readLine()
		if err != nil {
			return err
		}
		if len(line) == 0 {
			return nil
		}
		if line[0] == ' ' || line[0] == '\t' {
			// obsolete line folding
			return errors.Wrapf(ErrMalformedHeader, "folded line %q", line)
		}
		name, value, ok := bytes.Cut(line, []byte{':'})
		if !ok {
			return errors.Wrapf(ErrMalformedHeader, "%q", line)
		}
		n := string(name)
		v := string(bytes.Trim(value, " \t"))
		if !httpguts.ValidHeaderFieldName(n) || !httpguts.ValidHeaderFieldValue(v) {
			return errors.Wrapf(ErrMalformedHeader, "%q", line)
		}
		h.Add(n, v)
	}
}

func readBody(br *bufio.Reader, lr *lineReader, req *Request, max int64) error {
	te := req.Header.Values(HeaderTransferEncoding)
	cl := req.Header.Values(HeaderContentLength)
	if len(te) > 0 {
		if len(cl) > 0 {
			return errors.Wrap(ErrBadContentLength, "content-length together with transfer-encoding")
		}
		if !isChunkedOnly(te) {
			return errors.Wrapf(ErrBadTransferEncoding, "%q", strings.Join(te, ", "))
		}
		return readChunkedBody(br, lr, req, max)
	}
	if len(cl) == 0 {
		return nil
	}
	n, err := parseContentLength(cl)
	if err != nil {
		return err
	}
	if n > max {
		return errors.Wrapf(ErrBodyTooLarge, "%d > %d", n, max)
	}
	req.ContentLength = n
	if n == 0 {
		return nil
	}
	req.Body = make([]byte, n)
	if _, err := io.ReadFull(br, req.Body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

func readChunkedBody(br *bufio.Reader, lr *lineReader, req *Request, max int64) error {
	body, err := io.ReadAll(io.LimitReader(httputil.NewChunkedReader(br), max+1))
	if err != nil {
		var ne net.Error
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &ne) {
			return err
		}
		return errors.Wrap(ErrBadChunkedBody, err.Error())
	}
	if int64(len(body)) > max {
		return errors.Wrapf(ErrBodyTooLarge, "chunked body over %d", max)
	}
	// trailer section up to the terminating empty line
	var trailer Header
	if err := readHeader(lr, &trailer); err != nil {
		return err
	}
	req.Body = body
	req.ContentLength = int64(len(body))
	req.Chunked = true
	return nil
}

func isChunkedOnly(values []string) bool {
	var codings []string
	for _, v := range values {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				codings = append(codings, strings.ToLower(c))
			}
		}
	}
	return len(codings) == 1 && codings[0] == "chunked"
}

func parseContentLength(values []string) (int64, error) {
	first := strings.TrimSpace(values[0])
	for _, v := range values[1:] {
		if strings.TrimSpace(v) != first {
			return 0, errors.Wrap(ErrBadContentLength, "conflicting values")
		}
	}
	if first == "" || first[0] == '+' || first[0] == '-' {
		return 0, errors.Wrapf(ErrBadContentLength, "%q", first)
	}
	n, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrBadContentLength, "%q", first)
	}
	return n, nil
}

// shouldKeepAlive applies HTTP/1.1 persistence rules: 1.1 persists unless
// "close" is listed, 1.0 only with an explicit "keep-alive".
func shouldKeepAlive(major, minor int, h Header) bool {
	conn := h.Values(HeaderConnection)
	if major > 1 || (major == 1 && minor >= 1) {
		return !httpguts.HeaderValuesContainsToken(conn, "close")
	}
	return httpguts.HeaderValuesContainsToken(conn, "keep-alive")
}

// lineReader reads CRLF (or bare LF) terminated lines against a byte budget
// shared by the request line, header fields and chunked trailers.
type lineReader struct {
	br      *bufio.Reader
	budget  int
	started bool
}

func (lr *lineReader) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := lr.br.ReadSlice('\n')
		if len(chunk) > 0 {
			lr.started = true
		}
		lr.budget -= len(chunk)
		if lr.budget < 0 {
			return nil, ErrHeaderTooLarge
		}
		if err == bufio.ErrBufferFull {
			line = append(line, chunk...)
			continue
		}
		if err != nil {
			if err == io.EOF && lr.started {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		line = append(line, chunk...)
		break
	}
	line = bytes.TrimSuffix(line, []byte{'\n'})
	line = bytes.TrimSuffix(line, []byte{'\r'})
	return line, nil
}
