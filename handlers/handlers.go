// File: handlers/handlers.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package handlers provides reference request handlers for hioload-http.
package handlers

import (
	"bytes"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/momentics/hioload-http/api"
	"github.com/momentics/hioload-http/internal/logger"
	"github.com/momentics/hioload-http/protocol"
)

// Segments splits target on '/'. Empty segments are dropped except the
// last one, which is always present: "/a/b" gives [a b], "/a/" gives [a ""]
// and "/" gives [""].
func Segments(target string) []string {
	var out []string
	for {
		i := strings.IndexByte(target, '/')
		if i < 0 {
			break
		}
		if i > 0 {
			out = append(out, target[:i])
		}
		target = target[i+1:]
	}
	return append(out, target)
}

// Hello answers every request with "<strong>Hello, NAME</strong>" where NAME
// is the target with all slashes removed.
var Hello = api.HandlerFunc(func(req *protocol.Request, emit api.Emitter) {
	logger.Debug("request", "method", req.Method, "target", req.Target, "remote", req.RemoteAddr)
	resp := protocol.NewResponse(req, http.StatusOK)
	name := strings.ReplaceAll(req.Target, "/", "")
	resp.SetBody("text/html", []byte("<strong>Hello, "+name+"</strong>"))
	emit(resp)
})

// EchoReply is the JSONEcho response document.
type EchoReply struct {
	Method   string         `json:"method"`
	Segments []string       `json:"segments"`
	Body     map[string]any `json:"body"`
}

type errorReply struct {
	Error string `json:"error"`
}

// JSONEcho decodes the body as a JSON object and echoes it back together
// with the target segments. An empty body counts as an empty object.
var JSONEcho = api.HandlerFunc(func(req *protocol.Request, emit api.Emitter) {
	body := map[string]any{}
	if len(bytes.TrimSpace(req.Body)) > 0 {
		if err := json.Unmarshal(req.Body, &body); err != nil {
			emit(jsonResponse(req, http.StatusBadRequest, errorReply{Error: "malformed JSON body: " + err.Error()}))
			return
		}
	}
	emit(jsonResponse(req, http.StatusOK, EchoReply{
		Method:   req.Method,
		Segments: Segments(req.Target),
		Body:     body,
	}))
})

func jsonResponse(req *protocol.Request, status int, v any) *protocol.Response {
	resp := protocol.NewResponse(req, status)
	payload, err := json.Marshal(v)
	if err != nil {
		resp.StatusCode = http.StatusInternalServerError
		payload = []byte(`{"error":"encoding failed"}`)
	}
	resp.SetBody("application/json", payload)
	return resp
}

// ByName resolves a handler for command-line selection.
func ByName(name string) (api.Handler, bool) {
	switch strings.ToLower(name) {
	case "hello", "":
		return Hello, true
	case "echo", "json":
		return JSONEcho, true
	}
	return nil, false
}
