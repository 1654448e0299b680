// Package topics owns the wire-topic grammar of the gear cloud dialect:
// the application-id namespace every topic travels under, the reserved
// control channels, and the classification of inbound traffic.
package topics

import "strings"

// Reserved channels relative to the application namespace.
const (
	// Present and Absent carry presence notifications. They are
	// subscribed only when the application registers listeners.
	Present = "/&present"
	Absent  = "/&absent"

	// PushOwner requests a push notification to the application owner.
	PushOwner = "/@push/owner"
)

// Wire translates an application-relative topic into the fully qualified
// broker topic namespaced by the application id.
func Wire(appID, topic string) string {
	return "/" + appID + topic
}

// Strip removes the application-id namespace from a wire topic, inverting
// Wire exactly.
func Strip(appID, wireTopic string) string {
	return strings.TrimPrefix(wireTopic, "/"+appID)
}

// ControlChannel is the private channel carrying control messages targeted
// at one specific connection.
func ControlChannel(clientID string) string {
	return "/&id/" + clientID + "/#"
}

// GearName is the chat channel the broker routes to whichever connection
// currently holds the alias.
func GearName(alias string) string {
	return "/gearname/" + alias
}

// SetAlias binds an alias to the publishing connection in the broker-side
// name registry.
func SetAlias(name string) string {
	return "/@setalias/" + name
}

// ReadStream requests the recent content of a named feed stream.
func ReadStream(stream string) string {
	return "/@readstream/" + stream
}

// WriteStream appends a data point to a named feed stream.
func WriteStream(stream string) string {
	return "/@writestream/" + stream
}

// ReadPostbox requests the stored content of a postbox.
func ReadPostbox(box string) string {
	return "/@readpostbox/" + box
}

// WritePostbox stores a message into a postbox.
func WritePostbox(box string) string {
	return "/@writepostbox/" + box
}

// WriteFeed publishes a datapoint set to a feed, optionally authorized by
// a feed API key.
func WriteFeed(feedID, apiKey string) string {
	if apiKey == "" {
		return "/@writefeed/" + feedID
	}
	return "/@writefeed/" + feedID + "/" + apiKey
}
