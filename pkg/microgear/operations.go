package microgear

import (
	"encoding/json"
	"fmt"

	"github.com/netpie/microgear-go/pkg/models"
	"github.com/netpie/microgear-go/pkg/topics"
)

// PublishOption adjusts a single publish operation.
type PublishOption func(*publishOptions)

type publishOptions struct {
	qos    byte
	retain bool
}

// WithQoS sets the MQTT quality-of-service level for one publish.
func WithQoS(qos byte) PublishOption {
	return func(o *publishOptions) { o.qos = qos }
}

// WithRetain marks the published message as retained on the broker.
func WithRetain() PublishOption {
	return func(o *publishOptions) { o.retain = true }
}

// Publish sends a message on an application-relative topic. The operation
// fails immediately while disconnected; messages are never queued.
func (c *Client) Publish(topic string, message []byte, opts ...PublishOption) error {
	conn, appID, err := c.requireConnected("publish")
	if err != nil {
		return err
	}

	po := publishOptions{}
	for _, opt := range opts {
		opt(&po)
	}
	return conn.Publish(topics.Wire(appID, topic), po.qos, po.retain, message)
}

// Subscribe registers interest in an application-relative topic. The wire
// topic joins the replay set so it survives reconnects; the set has true
// set semantics, duplicates are never stored.
func (c *Client) Subscribe(topic string) error {
	conn, appID, err := c.requireConnected("subscribe")
	if err != nil {
		return err
	}

	wire := topics.Wire(appID, topic)
	if err := conn.Subscribe(wire, 0); err != nil {
		c.Emit(EventError, "subscribe failed: "+err.Error())
		return err
	}
	c.subscriptions.SetIfAbsent(wire, 0)
	return nil
}

// Unsubscribe drops an application-relative topic and removes it from the
// replay set.
func (c *Client) Unsubscribe(topic string) error {
	conn, appID, err := c.requireConnected("unsubscribe")
	if err != nil {
		return err
	}

	wire := topics.Wire(appID, topic)
	if err := conn.Unsubscribe(wire); err != nil {
		c.Emit(EventError, "unsubscribe failed: "+err.Error())
		return err
	}
	c.subscriptions.Remove(wire)
	return nil
}

// Chat sends a message to whichever connection currently holds the alias,
// relying on the broker-side registry for routing.
func (c *Client) Chat(alias string, message []byte, opts ...PublishOption) error {
	return c.Publish(topics.GearName(alias), message, opts...)
}

// SetAlias binds a human-chosen name to this connection in the broker-side
// registry so peers can Chat to it. The alias is re-announced after every
// reconnect.
func (c *Client) SetAlias(name string) error {
	name = models.TruncateAlias(name)

	conn, appID, err := c.requireConnected("setalias")
	if err != nil {
		return err
	}
	if err := conn.Publish(topics.Wire(appID, topics.SetAlias(name)), 0, false, []byte{}); err != nil {
		c.Emit(EventError, "setalias failed: "+err.Error())
		return err
	}

	c.mu.Lock()
	c.alias = name
	c.mu.Unlock()
	return nil
}

// SetName binds a name to this connection.
//
// Deprecated: use SetAlias.
func (c *Client) SetName(name string) error {
	return c.SetAlias(name)
}

// UnsetName clears the alias binding so it is no longer re-announced after
// reconnects.
//
// Deprecated: use SetAlias with the replacement name instead.
func (c *Client) UnsetName() error {
	c.mu.Lock()
	c.alias = ""
	c.mu.Unlock()
	return nil
}

// ReadStream requests the recent content of a named feed stream, filtered
// server side.
func (c *Client) ReadStream(stream, filter string) error {
	payload, err := json.Marshal(map[string]string{"filter": filter})
	if err != nil {
		return fmt.Errorf("readstream payload: %w", err)
	}
	return c.Publish(topics.ReadStream(stream), payload)
}

// WriteStream appends a data point to a named feed stream.
func (c *Client) WriteStream(stream string, data interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{"data": data})
	if err != nil {
		return fmt.Errorf("writestream payload: %w", err)
	}
	return c.Publish(topics.WriteStream(stream), payload)
}

// ReadPostbox requests the stored content of a postbox.
func (c *Client) ReadPostbox(box string) error {
	return c.Publish(topics.ReadPostbox(box), nil)
}

// WritePostbox stores a message into a postbox.
func (c *Client) WritePostbox(box string, data []byte) error {
	return c.Publish(topics.WritePostbox(box), data)
}

// WriteFeed publishes a datapoint set to a feed. The optional apiKey
// authorizes writes to feeds owned by another application.
func (c *Client) WriteFeed(feedID string, data interface{}, apiKey ...string) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("writefeed payload: %w", err)
	}
	key := ""
	if len(apiKey) > 0 {
		key = apiKey[0]
	}
	return c.Publish(topics.WriteFeed(feedID, key), payload)
}

// PushOwner requests a push notification to the application owner.
func (c *Client) PushOwner(text string) error {
	return c.Publish(topics.PushOwner, []byte(text))
}
