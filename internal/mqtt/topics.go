package mqtt

import "strings"

// Topics builds the topic names of one device
type Topics struct {
	Prefix string
	MAC    string
}

// State is the retained state topic of an entity
func (t Topics) State(uniqueID string) string {
	return t.Prefix + "/" + t.MAC + "/" + uniqueID + "/state"
}

// Set is the command topic of an entity
func (t Topics) Set(uniqueID string) string {
	return t.Prefix + "/" + t.MAC + "/" + uniqueID + "/set"
}

// SetFilter matches the command topics of every entity
func (t Topics) SetFilter() string {
	return t.Prefix + "/" + t.MAC + "/+/set"
}

// Availability carries "online"/"offline" for the daemon and device
func (t Topics) Availability() string {
	return t.Prefix + "/" + t.MAC + "/availability"
}

// ParseSet extracts the unique id from a command topic
func (t Topics) ParseSet(topic string) (string, bool) {
	base := t.Prefix + "/" + t.MAC + "/"
	if !strings.HasPrefix(topic, base) || !strings.HasSuffix(topic, "/set") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(topic, base), "/set")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
