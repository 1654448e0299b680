package topics

import (
	"encoding/json"
	"strings"
)

// Kind discriminates inbound wire traffic after namespace stripping.
type Kind int

const (
	// KindMessage is an ordinary application message.
	KindMessage Kind = iota
	// KindPresent and KindAbsent are presence notifications.
	KindPresent
	KindAbsent
	// KindResetEndpoint tells the client its broker endpoint moved.
	KindResetEndpoint
	// KindControl is an unrecognized control-channel message.
	KindControl
	// KindInfo and KindError are broker-originated notices.
	KindInfo
	KindError
)

// Inbound is one classified broker message. Topic is the post-namespace
// topic the application sees.
type Inbound struct {
	Kind    Kind
	Topic   string
	Payload []byte
}

// Classify strips the application namespace from a wire topic and buckets
// the message: control channel ("/&..."), reserved notices ("/@info",
// "/@error"), or application traffic.
func Classify(appID, wireTopic string, payload []byte) Inbound {
	topic := Strip(appID, wireTopic)

	if rest, ok := strings.CutPrefix(topic, "/&"); ok {
		name := rest
		if i := strings.Index(rest, "/"); i >= 0 {
			name = rest[:i]
		}
		switch name {
		case "present":
			return Inbound{Kind: KindPresent, Topic: topic, Payload: payload}
		case "absent":
			return Inbound{Kind: KindAbsent, Topic: topic, Payload: payload}
		case "resetendpoint":
			return Inbound{Kind: KindResetEndpoint, Topic: topic, Payload: payload}
		}
		return Inbound{Kind: KindControl, Topic: topic, Payload: payload}
	}

	if rest, ok := strings.CutPrefix(topic, "/@"); ok {
		name := rest
		if i := strings.Index(rest, "/"); i >= 0 {
			name = rest[:i]
		}
		switch name {
		case "info":
			return Inbound{Kind: KindInfo, Topic: topic, Payload: payload}
		case "error":
			return Inbound{Kind: KindError, Topic: topic, Payload: payload}
		}
	}

	return Inbound{Kind: KindMessage, Topic: topic, Payload: payload}
}

// DecodeJSONOrText parses a payload as JSON, falling back to the raw text
// when it is not valid JSON. Presence payloads use both shapes in the
// wild.
func DecodeJSONOrText(payload []byte) interface{} {
	var v interface{}
	if err := json.Unmarshal(payload, &v); err != nil {
		return string(payload)
	}
	return v
}
