package handlers

import (
	"net/http"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-http/protocol"
)

func TestSegments(t *testing.T) {
	cases := map[string][]string{
		"/":          {""},
		"/a/b":       {"a", "b"},
		"/a/":        {"a", ""},
		"//a//b":     {"a", "b"},
		"plain":      {"plain"},
		"/users/42/": {"users", "42", ""},
	}
	for in, want := range cases {
		assert.Equal(t, want, Segments(in), in)
	}
}

func TestHello(t *testing.T) {
	req := &protocol.Request{Method: "GET", Target: "/wor/ld", ProtoMajor: 1, ProtoMinor: 1, KeepAlive: true}
	var resp *protocol.Response
	Hello.ServeRequest(req, func(r *protocol.Response) { resp = r })
	require.NotNil(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
	assert.Equal(t, "<strong>Hello, world</strong>", string(resp.Body))
	assert.True(t, resp.KeepAlive)
}

func TestJSONEcho(t *testing.T) {
	req := &protocol.Request{Method: "POST", Target: "/api/items", Body: []byte(`{"name":"x","n":2}`)}
	var resp *protocol.Response
	JSONEcho.ServeRequest(req, func(r *protocol.Response) { resp = r })
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var reply EchoReply
	require.NoError(t, json.Unmarshal(resp.Body, &reply))
	assert.Equal(t, "POST", reply.Method)
	assert.Equal(t, []string{"api", "items"}, reply.Segments)
	assert.Equal(t, "x", reply.Body["name"])
	assert.EqualValues(t, 2, reply.Body["n"])
}

func TestJSONEchoEmptyAndMalformed(t *testing.T) {
	var resp *protocol.Response
	JSONEcho.ServeRequest(&protocol.Request{Method: "GET", Target: "/"}, func(r *protocol.Response) { resp = r })
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"method":"GET","segments":[""],"body":{}}`, string(resp.Body))

	JSONEcho.ServeRequest(&protocol.Request{Method: "POST", Target: "/", Body: []byte("{nope")},
		func(r *protocol.Response) { resp = r })
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "malformed JSON body")
}

func TestByName(t *testing.T) {
	_, ok := ByName("hello")
	assert.True(t, ok)
	_, ok = ByName("ECHO")
	assert.True(t, ok)
	_, ok = ByName("nope")
	assert.False(t, ok)
}
