package broker

import (
	"errors"
	"strings"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

// ErrorClass buckets transport failures by the reaction they require.
type ErrorClass int

const (
	// ErrClassOther covers network-level failures; the connection is
	// retried with the cached credentials intact.
	ErrClassOther ErrorClass = iota
	// ErrClassBadCredentials means the broker no longer honors the
	// derived credentials; the cached tokens must be wiped and the whole
	// handshake restarted.
	ErrClassBadCredentials
	// ErrClassNotAuthorized is an authorization policy rejection; retried
	// without wiping the cache.
	ErrClassNotAuthorized
)

func (c ErrorClass) String() string {
	switch c {
	case ErrClassBadCredentials:
		return "bad-credentials"
	case ErrClassNotAuthorized:
		return "not-authorized"
	default:
		return "other"
	}
}

// Classify maps a transport error onto its reaction class using the typed
// CONNACK reason errors from the paho packets layer, falling back to the
// 3.1 reason phrases for brokers that only surface text.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrClassOther
	}

	if errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) {
		return ErrClassBadCredentials
	}
	if errors.Is(err, packets.ErrorRefusedNotAuthorised) {
		return ErrClassNotAuthorized
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "bad user name or password"),
		strings.Contains(msg, "bad username or password"):
		return ErrClassBadCredentials
	case strings.Contains(msg, "not authorized"),
		strings.Contains(msg, "not authorised"):
		return ErrClassNotAuthorized
	}
	return ErrClassOther
}
