package models

// PresenceEvent notifies the application that a peer identity became
// reachable ("present") or unreachable ("absent") on the broker.
type PresenceEvent struct {
	Event   string `json:"event"`
	GearKey string `json:"gearkey"`
}
