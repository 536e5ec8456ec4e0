package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/samber/lo"
)

const (
	connectionFailedMessage = "Connection failed. Please check your network."
	timeoutMessage          = "Request timeout. The server is taking too long to respond."
)

// TransportError means no response was received: DNS, connection, TLS or timeout failures.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Timeout() {
		return timeoutMessage
	}
	return connectionFailedMessage
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the request was abandoned because it took too long.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// Detail includes the underlying cause, for logs.
func (e *TransportError) Detail() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

// FieldError holds every message the server reported for one field.
type FieldError struct {
	Field    string
	Messages []string
}

// FieldErrors is a rejected request whose body mapped field names to error lists.
// Fields keep the order the server sent them in.
type FieldErrors struct {
	Status int
	Fields []FieldError
}

// Error joins the first message of every field as "field: message" lines.
func (e *FieldErrors) Error() string {
	lines := lo.FilterMap(e.Fields, func(f FieldError, _ int) (string, bool) {
		if len(f.Messages) == 0 {
			return "", false
		}
		return fmt.Sprintf("%s: %s", f.Field, f.Messages[0]), true
	})
	return strings.Join(lines, "\n")
}

// Get returns the messages reported for a field.
func (e *FieldErrors) Get(field string) []string {
	f, ok := lo.Find(e.Fields, func(f FieldError) bool { return f.Field == field })
	if !ok {
		return nil
	}
	return f.Messages
}

// First returns the first message of the first listed field that has one.
func (e *FieldErrors) First(fields ...string) (string, bool) {
	for _, field := range fields {
		if messages := e.Get(field); len(messages) > 0 {
			return messages[0], true
		}
	}
	return "", false
}

// StatusError is a failed response that did not carry field errors, such as a 500 or an HTML error page.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// LoginError is a rejected login. Message is what the user sees.
type LoginError struct {
	Message string
	Fields  *FieldErrors
}

func (e *LoginError) Error() string { return e.Message }

func (e *LoginError) Unwrap() error {
	if e.Fields == nil {
		return nil
	}
	return e.Fields
}

// ActionError is a rejected account action such as a role switch. Message is what the user sees.
type ActionError struct {
	Message string
	Fields  *FieldErrors
}

func (e *ActionError) Error() string { return e.Message }

func (e *ActionError) Unwrap() error {
	if e.Fields == nil {
		return nil
	}
	return e.Fields
}

// errorFromResponse classifies a non-2xx response.
func errorFromResponse(res *response) error {
	if res.status >= 400 && res.status < 500 && isJSON(res) {
		if fe, err := parseFieldErrors(res.status, res.body); err == nil && len(fe.Fields) > 0 {
			return fe
		}
	}

	return &StatusError{Status: res.status, Message: summarize(res)}
}

func isJSON(res *response) bool {
	if strings.Contains(res.contentType, "json") {
		return true
	}
	trimmed := bytes.TrimSpace(res.body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// parseFieldErrors decodes a JSON object of field -> errors while keeping key order.
// Values may be a list of strings, a single string, or anything else (rendered as JSON).
func parseFieldErrors(status int, body []byte) (*FieldErrors, error) {
	dec := json.NewDecoder(bytes.NewReader(body))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	fe := &FieldErrors{Status: status}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		field, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected field name, got %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		fe.Fields = append(fe.Fields, FieldError{Field: field, Messages: messagesOf(raw)})
	}

	return fe, nil
}

func messagesOf(raw json.RawMessage) []string {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return lo.Map(list, func(item json.RawMessage, _ int) string {
			var s string
			if err := json.Unmarshal(item, &s); err == nil {
				return s
			}
			return string(item)
		})
	}

	return []string{string(raw)}
}
