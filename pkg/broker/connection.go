package broker

import (
	"errors"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/netpie/microgear-go/pkg/models"
)

// ErrNotConnected is returned by operations that need a live transport.
var ErrNotConnected = errors.New("broker connection is not established")

// Connection is the MQTT transport surface the client drives.
type Connection interface {
	Connect(address string, creds Credentials) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte) error
	Unsubscribe(topic string) error
	Disconnect(quiesce uint)
	IsConnected() bool
}

// Handlers receive transport lifecycle callbacks. All callbacks fire on
// the transport's own goroutines.
type Handlers struct {
	OnConnect        func()
	OnConnectionLost func(error)
	OnMessage        func(topic string, payload []byte)
}

// Will describes an optional last-will message registered with the broker
// at connect time. Its topic is namespaced like any published topic.
type Will struct {
	Topic   string `yaml:"topic"`
	Payload string `yaml:"payload"`
	QoS     byte   `yaml:"qos"`
	Retain  bool   `yaml:"retain"`
}

// Options configure the broker transport.
type Options struct {
	// Secure selects TLS ("ssl://") instead of plain TCP.
	Secure    bool
	KeepAlive time.Duration
	Will      *Will
}

// PahoConnection implements Connection on the eclipse paho client.
// Reconnection is owned by the caller, not by paho: authentication-class
// failures need cache invalidation first, so auto-reconnect stays off.
type PahoConnection struct {
	opts     Options
	handlers Handlers
	logger   zerolog.Logger

	mu     sync.Mutex
	client pahomqtt.Client
}

// NewPahoConnection creates an unconnected transport.
func NewPahoConnection(opts Options, handlers Handlers, logger zerolog.Logger) *PahoConnection {
	return &PahoConnection{
		opts:     opts,
		handlers: handlers,
		logger:   logger,
	}
}

// Connect opens the MQTT session at address ("host:port") with the derived
// credentials and blocks until the CONNACK arrives.
func (c *PahoConnection) Connect(address string, creds Credentials) error {
	scheme := "tcp"
	if c.opts.Secure {
		scheme = "ssl"
	}
	keepAlive := c.opts.KeepAlive
	if keepAlive <= 0 {
		keepAlive = models.KeepAliveInterval
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(scheme + "://" + address).
		SetClientID(creds.ClientID).
		SetUsername(creds.Username).
		SetPassword(creds.Password).
		SetProtocolVersion(3).
		SetKeepAlive(keepAlive).
		SetCleanSession(true).
		SetAutoReconnect(false)

	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(msg.Topic(), msg.Payload())
		}
	})
	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		if c.handlers.OnConnect != nil {
			c.handlers.OnConnect()
		}
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.logger.Warn().Err(err).Msg("Broker connection lost")
		if c.handlers.OnConnectionLost != nil {
			c.handlers.OnConnectionLost(err)
		}
	})
	if w := c.opts.Will; w != nil {
		opts.SetBinaryWill(w.Topic, []byte(w.Payload), w.QoS, w.Retain)
	}

	client := pahomqtt.NewClient(opts)
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	c.logger.Info().Str("address", address).Str("username", creds.Username).Msg("Connecting to broker")
	token := client.Connect()
	token.Wait()
	return token.Error()
}

// Publish sends a message; messages are not queued while disconnected.
func (c *PahoConnection) Publish(topic string, qos byte, retained bool, payload []byte) error {
	client, err := c.live()
	if err != nil {
		return err
	}
	token := client.Publish(topic, qos, retained, payload)
	token.Wait()
	return token.Error()
}

// Subscribe registers the topic; inbound messages reach OnMessage.
func (c *PahoConnection) Subscribe(topic string, qos byte) error {
	client, err := c.live()
	if err != nil {
		return err
	}
	token := client.Subscribe(topic, qos, nil)
	token.Wait()
	return token.Error()
}

// Unsubscribe drops the topic subscription.
func (c *PahoConnection) Unsubscribe(topic string) error {
	client, err := c.live()
	if err != nil {
		return err
	}
	token := client.Unsubscribe(topic)
	token.Wait()
	return token.Error()
}

// Disconnect closes the session, waiting quiesce milliseconds for
// in-flight work.
func (c *PahoConnection) Disconnect(quiesce uint) {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client != nil && client.IsConnected() {
		client.Disconnect(quiesce)
	}
}

// IsConnected reports whether the transport session is up.
func (c *PahoConnection) IsConnected() bool {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	return client != nil && client.IsConnected()
}

func (c *PahoConnection) live() (pahomqtt.Client, error) {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return nil, ErrNotConnected
	}
	return client, nil
}
