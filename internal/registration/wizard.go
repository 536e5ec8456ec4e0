package registration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/looplab/fsm"
	log "github.com/sirupsen/logrus"

	"mechconnect/internal/geography"
)

// State is the wizard's position: one of the four stages, or a submission state.
type State string

const (
	StateStage1     State = "stage1"
	StateStage2     State = "stage2"
	StateStage3     State = "stage3"
	StateStage4     State = "stage4"
	StateSubmitting State = "submitting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

const (
	eventNext     = "next"
	eventPrevious = "previous"
	eventSubmit   = "submit"
	eventAccept   = "accept"
	eventReject   = "reject"
	eventResume   = "resume"
)

var (
	ErrSubmissionInProgress = errors.New("registration is already being submitted")
	ErrAlreadyRegistered    = errors.New("registration already completed")
)

var stageStates = map[Stage]State{
	StagePersonal:     StateStage1,
	StageSecurity:     StateStage2,
	StageDemographics: StateStage3,
	StageLocation:     StateStage4,
}

// Stage maps a state to the stage the user sees. Submission states belong to the last stage.
func (s State) Stage() Stage {
	for stage, state := range stageStates {
		if state == s {
			return stage
		}
	}
	return LastStage
}

var transitions = fsm.Events{
	{Name: eventNext, Src: []string{string(StateStage1)}, Dst: string(StateStage2)},
	{Name: eventNext, Src: []string{string(StateStage2)}, Dst: string(StateStage3)},
	{Name: eventNext, Src: []string{string(StateStage3)}, Dst: string(StateStage4)},
	{Name: eventPrevious, Src: []string{string(StateStage2)}, Dst: string(StateStage1)},
	{Name: eventPrevious, Src: []string{string(StateStage3)}, Dst: string(StateStage2)},
	{Name: eventPrevious, Src: []string{string(StateStage4)}, Dst: string(StateStage3)},
	{Name: eventSubmit, Src: []string{string(StateStage4)}, Dst: string(StateSubmitting)},
	{Name: eventAccept, Src: []string{string(StateSubmitting)}, Dst: string(StateDone)},
	{Name: eventReject, Src: []string{string(StateSubmitting)}, Dst: string(StateFailed)},
	{Name: eventResume, Src: []string{string(StateFailed)}, Dst: string(StateStage4)},
}

// Controller runs one user's registration wizard. It is safe for concurrent use; the lock is
// not held while a submission or geography request is in flight.
type Controller struct {
	resolver *geography.Resolver
	gateway  Submitter

	mu           sync.Mutex
	machine      *fsm.FSM
	form         Form
	confirmation string
	submitErr    error
	failed       Form
	log          *log.Entry
}

// NewController starts a wizard at the first stage with a fresh form.
func NewController(resolver *geography.Resolver, gateway Submitter) *Controller {
	return Restore(resolver, gateway, NewForm(), FirstStage)
}

// Restore starts a wizard at a saved stage with a saved form.
func Restore(resolver *geography.Resolver, gateway Submitter, form Form, stage Stage) *Controller {
	c := &Controller{
		resolver: resolver,
		gateway:  gateway,
		form:     form,
		log:      log.WithField("component", "wizard"),
	}
	if form.Role == "" {
		c.form.Role = DefaultRole
	}

	initial := stageStates[clampStage(stage)]
	c.machine = fsm.NewFSM(string(initial), transitions, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			c.log.WithFields(log.Fields{"from": e.Src, "to": e.Dst, "event": e.Event}).Debug("Wizard transition")
		},
	})
	return c
}

// fire runs a transition that the caller has already checked is allowed.
// Callers hold c.mu. The request context is not used: a transition must not be skipped because the request was cancelled.
func (c *Controller) fire(event string) {
	if err := c.machine.Event(context.Background(), event); err != nil {
		panic(fmt.Sprintf("wizard: %s from %s: %v", event, c.machine.Current(), err))
	}
}

func (c *Controller) state() State {
	return State(c.machine.Current())
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state()
}

func (c *Controller) Stage() Stage {
	return c.State().Stage()
}

// Form returns a copy of the current form.
func (c *Controller) Form() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

// Confirmation is the server's message once the wizard is done.
func (c *Controller) Confirmation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmation
}

// LastError is the error of the most recent failed submission, cleared on success.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitErr
}

// Update replaces the form with fn applied to it.
func (c *Controller) Update(fn func(Form) Form) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form = fn(c.form)
}

// SetField sets one field by name.
func (c *Controller) SetField(field Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	form, err := c.form.Set(field, value)
	if err != nil {
		return fmt.Errorf("%w: %q", err, field)
	}
	c.form = form
	return nil
}

// Next validates the current stage. If it fails, the stage is unchanged and the result says why.
// Otherwise it advances, or at the last stage submits the form. A submission error is returned
// as err and leaves the wizard at the last stage with the form intact.
func (c *Controller) Next(ctx context.Context) (ValidationResult, error) {
	c.mu.Lock()

	switch c.state() {
	case StateSubmitting:
		c.mu.Unlock()
		return ValidationResult{Valid: true, Stage: LastStage}, ErrSubmissionInProgress
	case StateDone:
		c.mu.Unlock()
		return ValidationResult{Valid: true, Stage: LastStage}, ErrAlreadyRegistered
	}

	stage := c.state().Stage()
	result := Validate(stage, c.form)
	if !result.Valid {
		c.mu.Unlock()
		c.log.WithFields(log.Fields{"stage": stage.String(), "missing": result.Missing}).Debug(result.Message)
		return result, nil
	}

	if stage < LastStage {
		c.fire(eventNext)
		c.mu.Unlock()
		return result, nil
	}

	return result, c.submit(ctx, c.gateway.Submit)
}

// submit runs one submission through the state machine. Callers hold c.mu; it is released
// while send is in flight and is not held on return.
func (c *Controller) submit(ctx context.Context, send func(context.Context, Form) (string, error)) error {
	c.fire(eventSubmit)
	form := c.form
	c.mu.Unlock()

	message, err := send(ctx, form)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.fire(eventReject)
		c.submitErr = err
		c.failed = form.Payload()
		c.fire(eventResume)
		return err
	}

	c.fire(eventAccept)
	c.submitErr = nil
	c.confirmation = message
	return nil
}

// Previous moves back one stage without validation. It does nothing at the first stage,
// while submitting, or once done.
func (c *Controller) Previous() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.machine.Can(eventPrevious) {
		c.fire(eventPrevious)
	}
	return c.state().Stage()
}

// Retry repeats the last failed action: a geography fetch, otherwise a failed submission.
// An unchanged form goes back through the gateway's Retry. It is a no-op when nothing failed.
func (c *Controller) Retry(ctx context.Context) error {
	if c.resolver != nil && c.resolver.Failed() {
		return c.resolver.Retry(ctx)
	}

	c.mu.Lock()
	if c.submitErr == nil || c.state() != StateStage4 {
		c.mu.Unlock()
		return nil
	}

	// An edited form is validated and submitted afresh.
	if c.form.Payload() != c.failed {
		c.mu.Unlock()
		_, err := c.Next(ctx)
		return err
	}
	return c.submit(ctx, func(ctx context.Context, form Form) (string, error) {
		if !c.gateway.Pending() {
			return c.gateway.Submit(ctx, form)
		}
		return c.gateway.Retry(ctx)
	})
}

// LoadRegions fills the region picker.
func (c *Controller) LoadRegions(ctx context.Context) error {
	return c.resolver.LoadRegions(ctx)
}

// Geography returns the picker state.
func (c *Controller) Geography() geography.State {
	return c.resolver.Snapshot()
}

func (c *Controller) SelectRegion(ctx context.Context, code string) error {
	return c.selectUnit(ctx, geography.Region, code)
}

func (c *Controller) SelectProvince(ctx context.Context, code string) error {
	return c.selectUnit(ctx, geography.Province, code)
}

func (c *Controller) SelectCity(ctx context.Context, code string) error {
	return c.selectUnit(ctx, geography.City, code)
}

func (c *Controller) SelectBarangay(ctx context.Context, code string) error {
	return c.selectUnit(ctx, geography.Barangay, code)
}

// selectUnit selects a unit and then copies the resolver's selections into the form.
// Copying from a fresh snapshot rather than from this call's result keeps the form in step
// with the resolver when selections overlap.
func (c *Controller) selectUnit(ctx context.Context, level geography.Level, code string) error {
	_, err := c.resolver.Select(ctx, level, code)
	if errors.Is(err, geography.ErrUnknownUnit) {
		return err
	}

	c.mu.Lock()
	c.form = c.form.ResetBelow(level).WithGeography(c.resolver.Snapshot())
	c.mu.Unlock()

	if errors.Is(err, geography.ErrSuperseded) {
		return nil
	}
	return err
}
