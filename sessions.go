package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/zekroTJA/timedmap"

	"mechconnect/internal/api"
	"mechconnect/internal/config"
	"mechconnect/internal/geography"
	"mechconnect/internal/registration"
	"mechconnect/internal/store"
)

// UserSession is everything the bot keeps for one Discord user between interactions.
// Each user gets their own API client so server session cookies are never shared.
type UserSession struct {
	ID     string
	UserID string
	Client *api.Client

	mu     sync.Mutex
	wizard *registration.Controller
}

// Sessions holds live user sessions. A session expires after the TTL without activity;
// an expired wizard is rebuilt from its stored draft on the next interaction.
type Sessions struct {
	// mu makes lookup-or-create atomic, so concurrent interactions share one session.
	mu        sync.Mutex
	items     *timedmap.TimedMap
	ttl       time.Duration
	drafts    store.Store
	newClient func() (*api.Client, error)
}

func NewSessions(cfg *config.Config, drafts store.Store) *Sessions {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	options := api.Options{
		BaseURL:      cfg.APIURL,
		GeographyURL: cfg.GeographyURL,
		Timeout:      cfg.RequestTimeout,
		Transport:    transport,
	}

	return &Sessions{
		items:     timedmap.New(time.Minute),
		ttl:       cfg.SessionTTL,
		drafts:    drafts,
		newClient: func() (*api.Client, error) { return api.New(options) },
	}
}

// Get returns the user's session, creating it if needed, and restarts its expiry.
func (s *Sessions) Get(userID string) (*UserSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.items.GetValue(userID).(*UserSession); ok {
		s.items.Set(userID, session, s.ttl)
		return session, nil
	}

	client, err := s.newClient()
	if err != nil {
		return nil, err
	}

	session := &UserSession{ID: uuid.NewString(), UserID: userID, Client: client}
	s.items.Set(userID, session, s.ttl, func(value interface{}) {
		log.WithFields(log.Fields{"user": userID, "session": session.ID}).Debug("Session expired")
	})
	log.WithFields(log.Fields{"user": userID, "session": session.ID}).Debug("Session started")
	return session, nil
}

// Wizard returns the user's registration wizard. A new wizard resumes the stored draft if there is one.
func (s *Sessions) Wizard(ctx context.Context, userID string) (*registration.Controller, error) {
	session, err := s.Get(userID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.wizard != nil {
		return session.wizard, nil
	}

	resolver := geography.NewResolver(session.Client)
	gateway := registration.NewGateway(session.Client)

	draft, ok, err := s.drafts.Load(ctx, userID)
	if err != nil {
		log.WithField("user", userID).WithError(err).Warn("Could not load draft, starting fresh")
	}
	if ok {
		session.wizard = registration.Restore(resolver, gateway, draft.Form, resumeStage(draft))
		log.WithFields(log.Fields{"user": userID, "stage": session.wizard.Stage().String()}).Info("Resumed registration draft")
	} else {
		session.wizard = registration.NewController(resolver, gateway)
	}
	return session.wizard, nil
}

// resumeStage is where a restored wizard starts. Drafts carry no passwords,
// so a draft saved past the password stage resumes there.
func resumeStage(draft store.Draft) registration.Stage {
	if draft.Stage > registration.StageSecurity && draft.Form.Password == "" {
		return registration.StageSecurity
	}
	return draft.Stage
}

// SaveDraft persists the wizard's current form and stage.
func (s *Sessions) SaveDraft(ctx context.Context, userID string, wizard *registration.Controller) {
	draft := store.Draft{Form: wizard.Form(), Stage: wizard.Stage()}
	if err := s.drafts.Save(ctx, userID, draft); err != nil {
		log.WithField("user", userID).WithError(err).Warn("Could not save draft")
	}
}

// Finish drops the wizard and its draft once registration is complete.
func (s *Sessions) Finish(ctx context.Context, userID string) {
	if session, ok := s.items.GetValue(userID).(*UserSession); ok {
		session.mu.Lock()
		session.wizard = nil
		session.mu.Unlock()
	}
	if err := s.drafts.Delete(ctx, userID); err != nil {
		log.WithField("user", userID).WithError(err).Warn("Could not delete draft")
	}
}

// Size is the number of live sessions.
func (s *Sessions) Size() int {
	return s.items.Size()
}

func (s *Sessions) Close() {
	s.items.StopCleaner()
}
