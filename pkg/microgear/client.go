// Package microgear is the public facade of the gear cloud client: it
// drives the token handshake, derives broker credentials, keeps the
// transport session alive and emits named events to the application.
package microgear

import (
	"errors"
	"fmt"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/netpie/microgear-go/pkg/broker"
	"github.com/netpie/microgear-go/pkg/cache"
	"github.com/netpie/microgear-go/pkg/file"
	"github.com/netpie/microgear-go/pkg/models"
	"github.com/netpie/microgear-go/pkg/token"
	"github.com/netpie/microgear-go/pkg/topics"
)

// tokenSource is the slice of the token manager the facade drives.
type tokenSource interface {
	GetToken(appID string) token.Outcome
	AccessToken() (*models.AccessToken, bool)
	Invalidate() error
	ClearEndpoint() error
	ResetToken() error
}

// Client is one gear cloud connection. Every asynchronous continuation
// carries its own *Client reference and every event is emitted on the
// owning instance's bus, so multiple clients in one process are safe by
// construction.
type Client struct {
	identity models.Identity
	cfg      Config
	logger   zerolog.Logger

	bus     evbus.Bus
	tokens  tokenSource
	backoff *token.Backoff

	// dial builds the transport; tests substitute a fake.
	dial          func(opts broker.Options, handlers broker.Handlers) broker.Connection
	retryInterval time.Duration

	// subscriptions is the set of wire topics replayed after reconnect,
	// keyed by topic with the subscribed QoS as value.
	subscriptions cmap.ConcurrentMap[string, byte]

	mu        sync.Mutex
	appID     string
	clientID  string
	alias     string
	conn      broker.Connection
	connected bool
	closing   bool
}

// New creates a client for the given identity. It fails only on
// configuration errors; no network traffic happens before Connect.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	identity, err := models.NewIdentity(cfg.Key, cfg.Secret, cfg.Alias)
	if err != nil {
		return nil, err
	}

	cachePath := cfg.CachePath
	if cachePath == "" {
		cachePath = cache.DefaultPath(".", identity.Key)
	}
	store := cache.NewFileStore(cachePath, identity.Key, file.NewFileService(), logger)

	authAddress := cfg.AuthAddress
	if authAddress == "" {
		authAddress = models.DefaultAuthAddress
	}
	scheme := "http"
	if cfg.Secure {
		scheme = "https"
	}

	c := &Client{
		identity:      identity,
		cfg:           cfg,
		logger:        logger,
		bus:           evbus.New(),
		backoff:       token.NewBackoff(models.MinBackoff, models.MaxBackoff),
		retryInterval: models.BrokerRetryInterval,
		subscriptions: cmap.New[byte](),
		alias:         identity.Alias,
	}
	c.dial = func(opts broker.Options, handlers broker.Handlers) broker.Connection {
		return broker.NewPahoConnection(opts, handlers, logger)
	}

	auth := token.NewGearAuthClient(identity, scheme+"://"+authAddress, logger)
	c.tokens = token.NewManager(identity, cfg.Scope, store, auth, c, logger)
	return c, nil
}

// On registers a handler for a named event. Registering a present or
// absent listener while already connected immediately subscribes the
// matching presence channel.
func (c *Client) On(event string, fn interface{}) error {
	if err := c.bus.Subscribe(event, fn); err != nil {
		return err
	}
	switch event {
	case EventPresent:
		c.subscribePresence(topics.Present)
	case EventAbsent:
		c.subscribePresence(topics.Absent)
	}
	return nil
}

// Off removes a previously registered handler.
func (c *Client) Off(event string, fn interface{}) error {
	return c.bus.Unsubscribe(event, fn)
}

// Emit publishes a named event on this client's own event surface.
func (c *Client) Emit(event string, args ...interface{}) {
	c.bus.Publish(event, args...)
}

// Connect starts the connection lifecycle for the given application id:
// token handshake with backoff, then the broker session. It returns
// immediately; progress is reported through events.
func (c *Client) Connect(appID string) error {
	if appID == "" {
		return errors.New("application id is required")
	}

	c.mu.Lock()
	c.appID = appID
	c.closing = false
	c.mu.Unlock()

	go c.initiateConnection()
	return nil
}

// Disconnect closes the broker session and stops the reconnect machinery.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closing = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.Disconnect(250)
	}
	c.Emit(EventDisconnected)
	c.Emit(EventClosed)
}

// Connected reports whether a live broker session exists.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.conn != nil && c.conn.IsConnected()
}

// ResetToken revokes the current access token and clears the credential
// cache so the next Connect performs a fresh handshake. On revocation
// failure the cache is left untouched and the error doubles as an error
// event.
func (c *Client) ResetToken() error {
	if err := c.tokens.ResetToken(); err != nil {
		c.Emit(EventError, "token revocation failed: "+err.Error())
		return err
	}
	return nil
}

// initiateConnection runs one pass of the token state machine and reacts
// to its outcome: fatal misconfiguration, backoff retry, immediate re-run,
// or broker connection.
func (c *Client) initiateConnection() {
	if c.isClosing() {
		return
	}

	outcome := c.tokens.GetToken(c.currentAppID())
	c.logger.Debug().Stringer("outcome", outcome).Msg("Token handshake pass finished")

	switch outcome {
	case token.OutcomeNoToken:
		c.Emit(EventError, "token is not issued, please check your gear key and gear secret")
	case token.OutcomePending:
		delay := c.backoff.Next()
		c.logger.Debug().Dur("delay", delay).Msg("Authorization pending, retrying")
		time.AfterFunc(delay, c.initiateConnection)
	case token.OutcomeIssued:
		c.backoff.Reset()
		c.initiateConnection()
	case token.OutcomeReady:
		c.backoff.Reset()
		c.brokerConnect()
	}
}

// brokerConnect turns the ready access token into a live transport
// session.
func (c *Client) brokerConnect() {
	access, ok := c.tokens.AccessToken()
	if !ok || access.Endpoint == "" {
		// The token was invalidated between ready and connect; run the
		// machine again.
		c.initiateConnection()
		return
	}

	creds := broker.DeriveCredentials(access, c.identity.Key, c.identity.Secret, time.Now())

	c.mu.Lock()
	c.clientID = creds.ClientID
	appID := c.appID
	c.mu.Unlock()

	opts := broker.Options{
		Secure:    c.cfg.Secure,
		KeepAlive: models.KeepAliveInterval,
	}
	if w := c.cfg.Will; w != nil {
		will := *w
		will.Topic = topics.Wire(appID, w.Topic)
		opts.Will = &will
	}

	conn := c.dial(opts, broker.Handlers{
		OnConnect:        c.handleConnect,
		OnConnectionLost: c.handleConnectionLost,
		OnMessage:        c.handleMessage,
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := conn.Connect(access.BrokerAddress(), creds); err != nil {
		c.handleTransportError(err)
	}
}

// handleConnect reacts to a successful CONNACK: control channel first,
// then subscription replay, presence channels and alias re-announcement,
// and only then the connected event, so listeners observe a consistent
// subscription set.
func (c *Client) handleConnect() {
	c.mu.Lock()
	appID := c.appID
	clientID := c.clientID
	alias := c.alias
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return
	}

	if err := conn.Subscribe(topics.Wire(appID, topics.ControlChannel(clientID)), 0); err != nil {
		c.logger.Warn().Err(err).Msg("Control channel subscription failed")
	}

	for item := range c.subscriptions.IterBuffered() {
		if err := conn.Subscribe(item.Key, item.Val); err != nil {
			c.logger.Warn().Err(err).Str("topic", item.Key).Msg("Subscription replay failed")
		}
	}

	if c.bus.HasCallback(EventPresent) {
		if err := conn.Subscribe(topics.Wire(appID, topics.Present), 0); err != nil {
			c.logger.Warn().Err(err).Msg("Presence subscription failed")
		}
	}
	if c.bus.HasCallback(EventAbsent) {
		if err := conn.Subscribe(topics.Wire(appID, topics.Absent), 0); err != nil {
			c.logger.Warn().Err(err).Msg("Absence subscription failed")
		}
	}

	if alias != "" {
		if err := conn.Publish(topics.Wire(appID, topics.SetAlias(alias)), 0, false, []byte{}); err != nil {
			c.logger.Warn().Err(err).Str("alias", alias).Msg("Alias announcement failed")
		}
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.logger.Info().Str("appid", appID).Msg("Connected to broker")
	c.Emit(EventConnected)
}

// handleConnectionLost runs on transport-level session loss.
func (c *Client) handleConnectionLost(err error) {
	c.mu.Lock()
	c.connected = false
	closing := c.closing
	c.mu.Unlock()

	c.Emit(EventDisconnected)
	c.Emit(EventClosed)

	if closing {
		return
	}
	c.handleTransportError(err)
}

// handleTransportError classifies a transport failure and schedules the
// matching recovery. Bad credentials wipe the cached tokens before the
// handshake restarts; everything else retries with the cache intact.
func (c *Client) handleTransportError(err error) {
	switch broker.Classify(err) {
	case broker.ErrClassBadCredentials:
		c.logger.Warn().Err(err).Msg("Broker rejected credentials, invalidating cached tokens")
		if cerr := c.tokens.Invalidate(); cerr != nil {
			c.logger.Error().Err(cerr).Msg("Failed to invalidate credential cache")
		}
		c.closeTransport()
	case broker.ErrClassNotAuthorized:
		c.logger.Warn().Err(err).Msg("Broker authorization refused, retrying")
		c.closeTransport()
	default:
		c.logger.Warn().Err(err).Msg("Broker connection failed, retrying")
	}
	c.scheduleReconnect()
}

func (c *Client) closeTransport() {
	c.mu.Lock()
	conn := c.conn
	c.connected = false
	c.mu.Unlock()
	if conn != nil {
		conn.Disconnect(0)
	}
}

func (c *Client) scheduleReconnect() {
	if c.isClosing() {
		return
	}
	time.AfterFunc(c.retryInterval, c.initiateConnection)
}

// handleMessage demultiplexes inbound wire traffic into control events and
// application messages.
func (c *Client) handleMessage(wireTopic string, payload []byte) {
	in := topics.Classify(c.currentAppID(), wireTopic, payload)

	switch in.Kind {
	case topics.KindPresent:
		c.Emit(EventPresent, topics.DecodeJSONOrText(payload))
	case topics.KindAbsent:
		c.Emit(EventAbsent, topics.DecodeJSONOrText(payload))
	case topics.KindResetEndpoint:
		// The broker moved; forget the endpoint so the next handshake
		// discovers the new instance.
		if err := c.tokens.ClearEndpoint(); err != nil {
			c.logger.Error().Err(err).Msg("Failed to clear broker endpoint")
			c.Emit(EventError, "endpoint reset failed: "+err.Error())
			return
		}
		c.Emit(EventInfo, "broker endpoint has been reset")
	case topics.KindInfo:
		c.Emit(EventInfo, string(payload))
	case topics.KindError:
		c.Emit(EventError, string(payload))
	case topics.KindControl:
		c.logger.Debug().Str("topic", in.Topic).Msg("Unrecognized control message")
	default:
		c.Emit(EventMessage, in.Topic, in.Payload)
	}
}

// subscribePresence lazily subscribes a presence channel when a listener
// shows up on an already connected client.
func (c *Client) subscribePresence(channel string) {
	c.mu.Lock()
	connected := c.connected
	appID := c.appID
	conn := c.conn
	c.mu.Unlock()

	if !connected || conn == nil {
		return
	}
	if err := conn.Subscribe(topics.Wire(appID, channel), 0); err != nil {
		c.logger.Warn().Err(err).Str("channel", channel).Msg("Presence subscription failed")
	}
}

// requireConnected guards operations that need a live transport. The
// failure is surfaced as an error event naming the operation; nothing is
// queued for later.
func (c *Client) requireConnected(op string) (broker.Connection, string, error) {
	c.mu.Lock()
	conn, appID, connected := c.conn, c.appID, c.connected
	c.mu.Unlock()

	if !connected || conn == nil {
		err := fmt.Errorf("%s requires a live broker connection", op)
		c.Emit(EventError, err.Error())
		return nil, "", err
	}
	return conn, appID, nil
}

func (c *Client) currentAppID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appID
}

func (c *Client) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}
