package token

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/netpie/microgear-go/pkg/cache"
	"github.com/netpie/microgear-go/pkg/models"
)

// Outcome is the result of one pass of the token state machine.
type Outcome int

const (
	// OutcomeNoToken means the handshake cannot proceed at all, usually a
	// misconfigured key or secret. Not retried.
	OutcomeNoToken Outcome = iota
	// OutcomePending means the handshake is waiting on the authorization
	// server; the caller retries after a backoff delay.
	OutcomePending
	// OutcomeIssued means an access token was just issued; the caller
	// re-runs the machine immediately.
	OutcomeIssued
	// OutcomeReady means an access token with a resolved endpoint is on
	// hand; the broker connection may proceed.
	OutcomeReady
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoToken:
		return "no-token"
	case OutcomePending:
		return "pending"
	case OutcomeIssued:
		return "issued"
	case OutcomeReady:
		return "ready"
	default:
		return "unknown"
	}
}

// EventRejected is emitted on the notifier when the authorization server
// rejects the cached credentials outright.
const EventRejected = "rejected"

// Notifier receives out-of-band notifications from the handshake.
type Notifier interface {
	Emit(event string, args ...interface{})
}

// Manager drives the two-step delegated-authorization handshake:
// request token, access token, then endpoint discovery for the broker
// instance assigned to this identity. Results are persisted through the
// credential store so a restart resumes where the previous process
// stopped.
type Manager struct {
	identity models.Identity
	scope    string
	store    cache.CredentialStore
	auth     AuthClient
	notify   Notifier
	logger   zerolog.Logger

	mu     sync.Mutex
	access *models.AccessToken
}

// NewManager creates a token manager for one identity.
func NewManager(identity models.Identity, scope string, store cache.CredentialStore, auth AuthClient, notify Notifier, logger zerolog.Logger) *Manager {
	return &Manager{
		identity: identity,
		scope:    scope,
		store:    store,
		auth:     auth,
		notify:   notify,
		logger:   logger,
	}
}

// GetToken runs one pass of the state machine and reports how far the
// handshake has advanced. It performs at most one network exchange per
// call; reaching OutcomeReady from a warm cache costs no network traffic.
func (m *Manager) GetToken(appID string) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Identity rotation safety: a cache written by a different gear key
	// must never feed this client.
	if cached := m.store.Key(); cached != "" && cached != m.identity.Key {
		m.logger.Warn().Str("cached_key", cached).Msg("Credential cache belongs to another gear key, clearing")
		if err := m.store.Clear(); err != nil {
			m.logger.Error().Err(err).Msg("Failed to clear foreign credential cache")
			return OutcomeNoToken
		}
		m.access = nil
	}

	if access, ok := m.cachedAccess(); ok {
		if access.Endpoint != "" {
			m.access = access
			return OutcomeReady
		}
		return m.discoverEndpoint(access)
	}

	if rt, ok := m.store.RequestToken(); ok {
		return m.exchange(rt)
	}

	return m.requestToken(appID)
}

// cachedAccess prefers the persisted token and falls back to the in-memory
// copy kept for ephemeral identities.
func (m *Manager) cachedAccess() (*models.AccessToken, bool) {
	if access, ok := m.store.AccessToken(); ok {
		return access, true
	}
	if m.access != nil {
		return m.access, true
	}
	return nil, false
}

func (m *Manager) discoverEndpoint(access *models.AccessToken) Outcome {
	endpoint, err := m.auth.DiscoverEndpoint(access)
	if err != nil {
		// The driving loop re-polls on OutcomeIssued, which retries the
		// discovery without discarding the token.
		m.logger.Warn().Err(err).Msg("Broker endpoint discovery failed")
		return OutcomeIssued
	}

	access.Endpoint = endpoint
	if _, persisted := m.store.AccessToken(); persisted {
		if err := m.store.SetAccessToken(access); err != nil {
			m.logger.Error().Err(err).Msg("Failed to persist discovered endpoint")
			return OutcomeNoToken
		}
	}
	m.access = access

	m.logger.Info().Str("endpoint", endpoint).Msg("Broker endpoint resolved")
	return OutcomeReady
}

func (m *Manager) exchange(rt *models.RequestToken) Outcome {
	result, err := m.auth.AccessToken(rt)
	if err != nil {
		if errors.Is(err, ErrNotYetAuthorized) {
			m.logger.Debug().Msg("Authorization pending, will retry")
			return OutcomePending
		}

		// The server will never grant this request token; wipe it and let
		// the next pass start a fresh cycle.
		m.logger.Warn().Err(err).Msg("Access-token exchange rejected")
		if m.notify != nil {
			m.notify.Emit(EventRejected, err.Error())
		}
		if cerr := m.store.Clear(); cerr != nil {
			m.logger.Error().Err(cerr).Msg("Failed to clear credential cache after rejection")
		}
		return OutcomePending
	}

	access := result.Token
	access.RevokeCode = RevokeCode(access.Token, access.Secret, m.identity.Secret)

	if result.Ephemeral {
		// Single-use identity: the token lives in memory only.
		if err := m.store.Clear(); err != nil {
			m.logger.Error().Err(err).Msg("Failed to clear cache for ephemeral identity")
			return OutcomeNoToken
		}
	} else {
		if err := m.store.SetAccessToken(&access); err != nil {
			m.logger.Error().Err(err).Msg("Failed to persist access token")
			return OutcomeNoToken
		}
		if err := m.store.ClearRequestToken(); err != nil {
			m.logger.Error().Err(err).Msg("Failed to clear request token")
			return OutcomeNoToken
		}
	}

	m.access = &access
	m.logger.Info().Msg("Access token issued")
	return OutcomeIssued
}

func (m *Manager) requestToken(appID string) Outcome {
	verifier := m.identity.Alias
	if verifier == "" {
		verifier = models.APIRevision
	}

	rt, err := m.auth.RequestToken(m.scope, appID, verifier)
	if err != nil {
		m.logger.Error().Err(err).Msg("Request-token request failed")
		return OutcomeNoToken
	}

	if err := m.store.SetRequestToken(rt); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist request token")
		return OutcomeNoToken
	}
	return OutcomePending
}

// AccessToken returns the current access token, if the handshake has
// produced one.
func (m *Manager) AccessToken() (*models.AccessToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cachedAccess()
}

// Invalidate wipes every cached credential, in memory and on disk. Used
// when the broker rejects the derived credentials.
func (m *Manager) Invalidate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = nil
	return m.store.Clear()
}

// ClearEndpoint drops the resolved broker endpoint so the next handshake
// pass performs endpoint discovery again.
func (m *Manager) ClearEndpoint() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.access != nil {
		m.access.Endpoint = ""
	}
	if access, ok := m.store.AccessToken(); ok {
		access.Endpoint = ""
		return m.store.SetAccessToken(access)
	}
	return nil
}

// ResetToken revokes the current access token and clears the cache. When
// revocation fails the cache is left untouched so the caller may retry.
func (m *Manager) ResetToken() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	access, ok := m.cachedAccess()
	if !ok {
		return nil
	}

	if err := m.auth.Revoke(access.Token, access.RevokeCode); err != nil {
		return err
	}

	m.access = nil
	return m.store.Clear()
}
