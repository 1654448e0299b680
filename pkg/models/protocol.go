package models

import "time"

// Protocol constants of the gear cloud dialect.
const (
	// APIRevision tags signed authorization requests. It doubles as the
	// request-token verifier when the client carries no alias.
	APIRevision = "NJS1b"

	// DefaultAuthAddress is the authorization server reached when no
	// override is configured.
	DefaultAuthAddress = "gearauth.netpie.io:8080"

	// OAuth endpoint paths on the authorization server.
	RequestTokenPath = "/oauth/request_token"
	AccessTokenPath  = "/oauth/access_token"
)

// Timing constants for the connection lifecycle.
const (
	// MinBackoff and MaxBackoff bound the doubling retry delay of the
	// token handshake while authorization is pending.
	MinBackoff = 100 * time.Millisecond
	MaxBackoff = 30 * time.Second

	// BrokerRetryInterval is the fixed delay before the connection
	// machine restarts after a transport-level failure.
	BrokerRetryInterval = 5 * time.Second

	// KeepAliveInterval is the MQTT keepalive used on broker sessions.
	KeepAliveInterval = 10 * time.Second
)
