package registration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"mechconnect/internal/api"
	"mechconnect/internal/geography"
)

// Registrar sends a registration payload. *api.Client implements it.
type Registrar interface {
	Register(ctx context.Context, payload any) (*api.RegisterResult, error)
}

// Submitter is what the controller needs from a gateway.
type Submitter interface {
	Submit(ctx context.Context, form Form) (string, error)
	Retry(ctx context.Context) (string, error)
	Pending() bool
}

// Gateway submits completed forms and remembers the last failed one so it can be retried.
// Each wizard gets its own gateway.
type Gateway struct {
	registrar Registrar

	mu     sync.Mutex
	failed *Form
}

func NewGateway(registrar Registrar) *Gateway {
	return &Gateway{registrar: registrar}
}

// Submit sends the whole form. On success it returns the server's confirmation message.
// Errors are *api.FieldErrors when the server rejected fields, *api.TransportError when
// no response arrived, or *api.StatusError for any other failed response.
func (g *Gateway) Submit(ctx context.Context, form Form) (string, error) {
	payload := form.Payload()

	entry := log.WithFields(log.Fields{"username": payload.Username, "role": payload.Role})
	entry.Debug("Submitting registration")
	if log.IsLevelEnabled(log.TraceLevel) {
		entry.Trace(api.DumpPayload(payload.Redacted()))
	}

	result, err := g.registrar.Register(ctx, payload)

	g.mu.Lock()
	defer g.mu.Unlock()

	if err != nil {
		g.failed = &payload
		var te *api.TransportError
		if errors.As(err, &te) {
			entry.WithField("cause", te.Detail()).Warn("Registration request failed")
		} else {
			entry.WithError(err).Info("Registration rejected")
		}
		return "", err
	}

	g.failed = nil
	entry.Info("Registration accepted")
	return result.Message, nil
}

// Retry re-submits the last failed form. With nothing pending it returns ("", nil),
// so calling it repeatedly after a success is harmless.
func (g *Gateway) Retry(ctx context.Context) (string, error) {
	g.mu.Lock()
	failed := g.failed
	g.mu.Unlock()

	if failed == nil {
		return "", nil
	}
	return g.Submit(ctx, *failed)
}

// Pending reports whether a failed submission is waiting for a retry.
func (g *Gateway) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failed != nil
}

// Describe turns any error produced by the wizard into the text shown to the user.
func Describe(err error) string {
	var (
		validationErr *ValidationError
		fieldErrs     *api.FieldErrors
		transportErr  *api.TransportError
		statusErr     *api.StatusError
		loginErr      *api.LoginError
		actionErr     *api.ActionError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.Is(err, geography.ErrFetchFailed):
		return "Could not load the address list. Press Retry to try again."
	case errors.As(err, &loginErr):
		return loginErr.Message
	case errors.As(err, &actionErr):
		return actionErr.Message
	case errors.Is(err, api.ErrNotLoggedIn):
		return "You are not logged in. Use /login first."
	case errors.As(err, &fieldErrs):
		return fieldErrs.Error()
	case errors.As(err, &transportErr):
		return transportErr.Error()
	case errors.As(err, &statusErr):
		return fmt.Sprintf("The server could not process the request (%d: %s)", statusErr.Status, statusErr.Message)
	case errors.Is(err, geography.ErrUnknownUnit):
		return MessageIncompleteAddress
	case errors.Is(err, ErrSubmissionInProgress):
		return "Your registration is already being submitted."
	case errors.Is(err, ErrAlreadyRegistered):
		return "This registration has already been completed. Please login."
	}
	return err.Error()
}
