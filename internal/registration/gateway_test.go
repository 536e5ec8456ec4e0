package registration

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mechconnect/internal/api"
	"mechconnect/internal/geography"
)

type fakeRegistrar struct {
	payloads []any
	results  []error
}

func (f *fakeRegistrar) Register(_ context.Context, payload any) (*api.RegisterResult, error) {
	f.payloads = append(f.payloads, payload)
	var err error
	if len(f.results) > 0 {
		err, f.results = f.results[0], f.results[1:]
	}
	if err != nil {
		return nil, err
	}
	return &api.RegisterResult{Message: "Registration successful! Please login."}, nil
}

func TestGateway_SubmitSendsTrimmedPayload(t *testing.T) {
	registrar := &fakeRegistrar{}
	gateway := NewGateway(registrar)

	message, err := gateway.Submit(context.Background(), completeForm().WithFirstname(" Ana ").WithRole(""))
	require.NoError(t, err)
	assert.Equal(t, "Registration successful! Please login.", message)
	assert.False(t, gateway.Pending())

	require.Len(t, registrar.payloads, 1)
	sent := registrar.payloads[0].(Form)
	assert.Equal(t, "Ana", sent.Firstname)
	assert.Equal(t, DefaultRole, sent.Role)
}

func TestGateway_RetryResendsFailedPayload(t *testing.T) {
	outage := &api.TransportError{Method: "POST", URL: "http://backend/users/register/", Err: errors.New("connection refused")}
	registrar := &fakeRegistrar{results: []error{outage}}
	gateway := NewGateway(registrar)

	_, err := gateway.Submit(context.Background(), completeForm())
	assert.ErrorIs(t, err, outage)
	assert.True(t, gateway.Pending())

	message, err := gateway.Retry(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, message)
	assert.False(t, gateway.Pending())
	require.Len(t, registrar.payloads, 2)
	assert.Equal(t, registrar.payloads[0], registrar.payloads[1])

	// Nothing left to retry.
	message, err = gateway.Retry(context.Background())
	require.NoError(t, err)
	assert.Empty(t, message)
	assert.Len(t, registrar.payloads, 2)
}

func TestGateway_ControllerRetryGoesThroughGateway(t *testing.T) {
	outage := &api.TransportError{Method: "POST", URL: "http://backend/users/register/", Err: errors.New("connection refused")}
	registrar := &fakeRegistrar{results: []error{outage, outage}}
	gateway := NewGateway(registrar)
	c := NewController(geography.NewResolver(newStubFetcher()), gateway)
	advanceTo(t, c, StageLocation)

	_, err := c.Next(context.Background())
	assert.ErrorIs(t, err, outage)
	assert.True(t, gateway.Pending())

	// Still down: the wizard stays at the last stage with the retry pending.
	assert.ErrorIs(t, c.Retry(context.Background()), outage)
	assert.Equal(t, StateStage4, c.State())
	assert.True(t, gateway.Pending())

	require.NoError(t, c.Retry(context.Background()))
	assert.Equal(t, StateDone, c.State())
	assert.False(t, gateway.Pending())
	assert.Equal(t, "Registration successful! Please login.", c.Confirmation())

	require.Len(t, registrar.payloads, 3)
	assert.Equal(t, registrar.payloads[0], registrar.payloads[2])

	require.NoError(t, c.Retry(context.Background()))
	assert.Len(t, registrar.payloads, 3)
}

func TestGateway_TraceDumpRedactsPasswords(t *testing.T) {
	level := log.GetLevel()
	log.SetLevel(log.TraceLevel)
	t.Cleanup(func() { log.SetLevel(level) })

	hook := test.NewGlobal()
	t.Cleanup(hook.Reset)

	_, err := NewGateway(&fakeRegistrar{}).Submit(context.Background(), completeForm())
	require.NoError(t, err)

	traces := lo.Filter(hook.AllEntries(), func(e *log.Entry, _ int) bool { return e.Level == log.TraceLevel })
	require.Len(t, traces, 1)
	assert.Contains(t, traces[0].Message, "ana")
	assert.NotContains(t, traces[0].Message, completeForm().Password)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", Validate(StageSecurity, completeForm().WithConfirmPassword("x")).Err(), MessagePasswordMismatch},
		{"field errors", &api.FieldErrors{Status: 400, Fields: []api.FieldError{
			{Field: "email", Messages: []string{"Email already exists"}},
			{Field: "username", Messages: []string{"Username already exists", "Too short"}},
		}}, "email: Email already exists\nusername: Username already exists"},
		{"login", &api.LoginError{Message: "Invalid credentials"}, "Invalid credentials"},
		{"action", &api.ActionError{Message: "Already registered as mechanic"}, "Already registered as mechanic"},
		{"not logged in", fmt.Errorf("profile: %w", api.ErrNotLoggedIn), "You are not logged in. Use /login first."},
		{"transport", &api.TransportError{Err: errors.New("dial tcp: refused")}, "Connection failed. Please check your network."},
		{"status", &api.StatusError{Status: 502, Message: "Bad Gateway"}, "The server could not process the request (502: Bad Gateway)"},
		{"geography", &geography.FetchError{Level: geography.Province, Parent: "R1", Err: errors.New("boom")}, "Could not load the address list. Press Retry to try again."},
		{"unknown unit", geography.ErrUnknownUnit, MessageIncompleteAddress},
		{"in progress", fmt.Errorf("wrapped: %w", ErrSubmissionInProgress), "Your registration is already being submitted."},
		{"done", ErrAlreadyRegistered, "This registration has already been completed. Please login."},
		{"other", errors.New("something odd"), "something odd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.err))
		})
	}
}
