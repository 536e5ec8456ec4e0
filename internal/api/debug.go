package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

var redactedFields = []string{"password", "confirm_password", "old_password", "new_password"}

// DebugRequest renders a request with its headers and body. The body is restored afterwards
// and password fields in JSON bodies are redacted.
func DebugRequest(req *http.Request) string {
	str := fmt.Sprintf("[%s %s]", req.Method, req.URL.String())
	str += debugHeaders(req.Header)

	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))

		if err != nil {
			str += fmt.Sprintf("\n\n {error while reading request body buffer: %s}", err)
		} else {
			str += fmt.Sprintf("\n\n%s", redactBody(body))
		}
	}

	return str
}

// DebugResponse renders a response with its headers and the already-read body.
func DebugResponse(res *http.Response, body []byte) string {
	target := ""
	if res.Request != nil {
		target = res.Request.URL.String()
	}
	str := fmt.Sprintf("[%s %s]", res.Status, target)
	str += debugHeaders(res.Header)

	if len(body) > 0 {
		str += fmt.Sprintf("\n\n%s", redactBody(body))
	}

	return str
}

// DumpPayload returns a spew dump of any value, for trace logs.
func DumpPayload(v any) string {
	return spew.Sdump(v)
}

func debugHeaders(header http.Header) string {
	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		for _, value := range header[name] {
			if strings.EqualFold(name, "Cookie") || strings.EqualFold(name, "Set-Cookie") {
				value = "[redacted]"
			}
			fmt.Fprintf(&b, "\n%s: %s", name, value)
		}
	}
	return b.String()
}

func redactBody(body []byte) []byte {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return body
	}

	changed := false
	for _, name := range redactedFields {
		if _, ok := fields[name]; ok {
			fields[name] = "[redacted]"
			changed = true
		}
	}
	if !changed {
		return body
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return body
	}
	return out
}
