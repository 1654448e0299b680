package token_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/netpie/microgear-go/pkg/cache"
	"github.com/netpie/microgear-go/pkg/file"
	"github.com/netpie/microgear-go/pkg/models"
	"github.com/netpie/microgear-go/pkg/token"
)

// MockAuthClient is a mock implementation of the AuthClient interface.
type MockAuthClient struct {
	mock.Mock
}

func (m *MockAuthClient) RequestToken(scope, appID, verifier string) (*models.RequestToken, error) {
	args := m.Called(scope, appID, verifier)
	if rt := args.Get(0); rt != nil {
		return rt.(*models.RequestToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthClient) AccessToken(rt *models.RequestToken) (*token.AccessTokenResult, error) {
	args := m.Called(rt)
	if res := args.Get(0); res != nil {
		return res.(*token.AccessTokenResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthClient) DiscoverEndpoint(at *models.AccessToken) (string, error) {
	args := m.Called(at)
	return args.String(0), args.Error(1)
}

func (m *MockAuthClient) Revoke(tok, revokeCode string) error {
	args := m.Called(tok, revokeCode)
	return args.Error(0)
}

// recordingNotifier captures out-of-band handshake events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Emit(event string, args ...interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e == event {
			c++
		}
	}
	return c
}

func newTestManager(t *testing.T, key string) (*token.Manager, *MockAuthClient, cache.CredentialStore, *recordingNotifier) {
	t.Helper()

	identity, err := models.NewIdentity(key, "s1", "")
	require.NoError(t, err)

	store := cache.NewFileStore(cache.DefaultPath(t.TempDir(), key), key, file.NewFileService(), zerolog.Nop())
	auth := new(MockAuthClient)
	notify := &recordingNotifier{}

	return token.NewManager(identity, "", store, auth, notify, zerolog.Nop()), auth, store, notify
}

// TestColdStartRequestsRequestToken: with an empty cache the first pass
// requests a request token with the protocol-marker verifier, persists it
// and reports pending.
func TestColdStartRequestsRequestToken(t *testing.T) {
	m, auth, store, _ := newTestManager(t, "k1")

	auth.On("RequestToken", "", "app1", models.APIRevision).
		Return(&models.RequestToken{Token: "rt", Secret: "rs", Verifier: models.APIRevision}, nil).Once()

	assert.Equal(t, token.OutcomePending, m.GetToken("app1"))

	rt, ok := store.RequestToken()
	require.True(t, ok)
	assert.Equal(t, "rt", rt.Token)
	assert.Equal(t, "rs", rt.Secret)
	assert.Equal(t, models.APIRevision, rt.Verifier)
	assert.Equal(t, "k1", store.Key())
	auth.AssertExpectations(t)
}

// TestAliasBecomesVerifier: a configured alias replaces the protocol
// marker as the request-token verifier.
func TestAliasBecomesVerifier(t *testing.T) {
	identity, err := models.NewIdentity("k1", "s1", "myplant")
	require.NoError(t, err)

	store := cache.NewFileStore(cache.DefaultPath(t.TempDir(), "k1"), "k1", file.NewFileService(), zerolog.Nop())
	auth := new(MockAuthClient)
	m := token.NewManager(identity, "", store, auth, &recordingNotifier{}, zerolog.Nop())

	auth.On("RequestToken", "", "app1", "myplant").
		Return(&models.RequestToken{Token: "rt", Secret: "rs", Verifier: "myplant"}, nil).Once()

	assert.Equal(t, token.OutcomePending, m.GetToken("app1"))
	auth.AssertExpectations(t)
}

func TestRequestTokenFailureIsFatal(t *testing.T) {
	m, auth, _, _ := newTestManager(t, "k1")

	auth.On("RequestToken", "", "app1", models.APIRevision).
		Return(nil, errors.New("consumer key rejected")).Once()

	assert.Equal(t, token.OutcomeNoToken, m.GetToken("app1"))
}

// TestExchangePendingAuthorization: a 401-class refusal keeps the request
// token and reports pending so the backoff loop re-polls.
func TestExchangePendingAuthorization(t *testing.T) {
	m, auth, store, _ := newTestManager(t, "k1")
	require.NoError(t, store.SetRequestToken(&models.RequestToken{Token: "rt", Secret: "rs", Verifier: "NJS1b"}))

	auth.On("AccessToken", mock.Anything).Return(nil, token.ErrNotYetAuthorized).Once()

	assert.Equal(t, token.OutcomePending, m.GetToken("app1"))

	_, ok := store.RequestToken()
	assert.True(t, ok, "pending authorization must keep the request token")
}

// TestExchangeRejectedClearsCache: any other refusal emits a rejected
// notification, wipes the cache and still reports pending so a fresh
// cycle starts.
func TestExchangeRejectedClearsCache(t *testing.T) {
	m, auth, store, notify := newTestManager(t, "k1")
	require.NoError(t, store.SetRequestToken(&models.RequestToken{Token: "rt", Secret: "rs", Verifier: "NJS1b"}))

	auth.On("AccessToken", mock.Anything).Return(nil, errors.New("request token not found")).Once()

	assert.Equal(t, token.OutcomePending, m.GetToken("app1"))
	assert.Equal(t, 1, notify.count(token.EventRejected))

	_, ok := store.RequestToken()
	assert.False(t, ok)
}

// TestExchangeSuccess: a granted exchange derives the revoke code,
// persists the access token, clears the request token and reports issued.
func TestExchangeSuccess(t *testing.T) {
	m, auth, store, _ := newTestManager(t, "k1")
	rt := &models.RequestToken{Token: "rt", Secret: "rs", Verifier: "NJS1b"}
	require.NoError(t, store.SetRequestToken(rt))

	auth.On("AccessToken", rt).Return(&token.AccessTokenResult{
		Token: models.AccessToken{Token: "at", Secret: "as", AppKey: "appkey", Endpoint: "broker.example.com:1883"},
	}, nil).Once()

	assert.Equal(t, token.OutcomeIssued, m.GetToken("app1"))

	at, ok := store.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "at", at.Token)
	assert.Equal(t, token.RevokeCode("at", "as", "s1"), at.RevokeCode)

	_, ok = store.RequestToken()
	assert.False(t, ok, "request token must be cleared once superseded")

	// The next pass reaches ready without any network call.
	assert.Equal(t, token.OutcomeReady, m.GetToken("app1"))
	auth.AssertExpectations(t)
}

// TestEphemeralIdentityIsNotPersisted: a single-use identity keeps its
// access token in memory only.
func TestEphemeralIdentityIsNotPersisted(t *testing.T) {
	m, auth, store, _ := newTestManager(t, "k1")
	require.NoError(t, store.SetRequestToken(&models.RequestToken{Token: "rt", Secret: "rs", Verifier: "NJS1b"}))

	auth.On("AccessToken", mock.Anything).Return(&token.AccessTokenResult{
		Token:     models.AccessToken{Token: "at", Secret: "as", Endpoint: "broker.example.com:1883"},
		Ephemeral: true,
	}, nil).Once()

	assert.Equal(t, token.OutcomeIssued, m.GetToken("app1"))

	_, ok := store.AccessToken()
	assert.False(t, ok, "ephemeral tokens must stay off disk")

	at, ok := m.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "at", at.Token)

	assert.Equal(t, token.OutcomeReady, m.GetToken("app1"))
}

// TestReadyWithoutNetwork: a cached access token with an endpoint
// short-circuits to ready without touching the authorization server.
func TestReadyWithoutNetwork(t *testing.T) {
	m, auth, store, _ := newTestManager(t, "k1")
	require.NoError(t, store.SetAccessToken(&models.AccessToken{Token: "at", Secret: "as", Endpoint: "broker.example.com:1883"}))

	assert.Equal(t, token.OutcomeReady, m.GetToken("app1"))
	assert.Equal(t, token.OutcomeReady, m.GetToken("app1"))

	auth.AssertNotCalled(t, "RequestToken", mock.Anything, mock.Anything, mock.Anything)
	auth.AssertNotCalled(t, "AccessToken", mock.Anything)
	auth.AssertNotCalled(t, "DiscoverEndpoint", mock.Anything)
}

// TestEmptyEndpointTriggersDiscovery: a cached token without an endpoint
// runs the discovery step, merges the result and persists it.
func TestEmptyEndpointTriggersDiscovery(t *testing.T) {
	m, auth, store, _ := newTestManager(t, "k1")
	require.NoError(t, store.SetAccessToken(&models.AccessToken{Token: "at", Secret: "as"}))

	auth.On("DiscoverEndpoint", mock.Anything).Return("broker.example.com:1883", nil).Once()

	assert.Equal(t, token.OutcomeReady, m.GetToken("app1"))

	at, ok := store.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "broker.example.com:1883", at.Endpoint)

	// Subsequent passes are ready with no further network calls.
	assert.Equal(t, token.OutcomeReady, m.GetToken("app1"))
	auth.AssertExpectations(t)
}

// TestFailedDiscoveryReportsIssued: a failed lookup keeps the token and
// lets the driving loop re-poll.
func TestFailedDiscoveryReportsIssued(t *testing.T) {
	m, auth, store, _ := newTestManager(t, "k1")
	require.NoError(t, store.SetAccessToken(&models.AccessToken{Token: "at", Secret: "as"}))

	auth.On("DiscoverEndpoint", mock.Anything).Return("", errors.New("lookup failed")).Once()

	assert.Equal(t, token.OutcomeIssued, m.GetToken("app1"))

	at, ok := store.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "", at.Endpoint)
}

// TestIdentityRotationClearsForeignCache: a cache written by another gear
// key is wiped before any token is trusted.
func TestIdentityRotationClearsForeignCache(t *testing.T) {
	dir := t.TempDir()
	path := cache.DefaultPath(dir, "shared")

	oldStore := cache.NewFileStore(path, "old-key", file.NewFileService(), zerolog.Nop())
	require.NoError(t, oldStore.SetAccessToken(&models.AccessToken{Token: "stale", Secret: "x", Endpoint: "old.example.com:1883"}))

	identity, err := models.NewIdentity("new-key", "s1", "")
	require.NoError(t, err)
	newStore := cache.NewFileStore(path, "new-key", file.NewFileService(), zerolog.Nop())
	auth := new(MockAuthClient)
	m := token.NewManager(identity, "", newStore, auth, &recordingNotifier{}, zerolog.Nop())

	auth.On("RequestToken", "", "app1", models.APIRevision).
		Return(&models.RequestToken{Token: "rt", Secret: "rs", Verifier: models.APIRevision}, nil).Once()

	assert.Equal(t, token.OutcomePending, m.GetToken("app1"))

	_, ok := newStore.AccessToken()
	assert.False(t, ok, "the stale token must not survive identity rotation")
}

func TestClearEndpointForcesRediscovery(t *testing.T) {
	m, auth, store, _ := newTestManager(t, "k1")
	require.NoError(t, store.SetAccessToken(&models.AccessToken{Token: "at", Secret: "as", Endpoint: "broker.example.com:1883"}))

	require.Equal(t, token.OutcomeReady, m.GetToken("app1"))
	require.NoError(t, m.ClearEndpoint())

	auth.On("DiscoverEndpoint", mock.Anything).Return("other.example.com:1883", nil).Once()
	assert.Equal(t, token.OutcomeReady, m.GetToken("app1"))

	at, ok := store.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "other.example.com:1883", at.Endpoint)
}

func TestResetTokenRevokesAndClears(t *testing.T) {
	m, auth, store, _ := newTestManager(t, "k1")
	require.NoError(t, store.SetAccessToken(&models.AccessToken{Token: "at", Secret: "as", Endpoint: "e:1", RevokeCode: "code"}))

	auth.On("Revoke", "at", "code").Return(nil).Once()

	require.NoError(t, m.ResetToken())
	_, ok := store.AccessToken()
	assert.False(t, ok)
}

// TestResetTokenKeepsCacheOnFailure: a failed revocation leaves the cache
// untouched so the caller may retry.
func TestResetTokenKeepsCacheOnFailure(t *testing.T) {
	m, auth, store, _ := newTestManager(t, "k1")
	require.NoError(t, store.SetAccessToken(&models.AccessToken{Token: "at", Secret: "as", Endpoint: "e:1", RevokeCode: "code"}))

	auth.On("Revoke", "at", "code").Return(token.ErrRevokeFailed).Once()

	assert.Error(t, m.ResetToken())
	_, ok := store.AccessToken()
	assert.True(t, ok)
}

func TestResetTokenWithoutTokenIsNoop(t *testing.T) {
	m, auth, _, _ := newTestManager(t, "k1")
	assert.NoError(t, m.ResetToken())
	auth.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything)
}
