package mqtt

import "fmt"

// Topic prefixes for the Gray Gate MQTT namespace.
//
// All topics follow the flat scheme: graygate/{category}/{type}/{id}
const (
	// TopicPrefix is the base for all Gray Gate topics.
	TopicPrefix = "graygate"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graygate/system"
)

// Topics provides builders for Gray Gate MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	eventTopic := topics.Event("port_forward", "pf-22-ssh")
//	// Returns: "graygate/event/port_forward/pf-22-ssh"
type Topics struct{}

// Event returns the topic for change events of one mirrored resource.
//
// Example: graygate/event/firewall_policy/fwp-block-iot
func (Topics) Event(typeTag, id string) string {
	return fmt.Sprintf("%s/event/%s/%s", TopicPrefix, typeTag, id)
}

// State returns the retained-state topic for one mirrored resource.
//
// Example: graygate/state/port_forward/pf-22-ssh
func (Topics) State(typeTag, id string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, typeTag, id)
}

// Command returns the topic on which local mutations for a resource arrive.
//
// Example: graygate/command/traffic_route/tr-vpn-media
func (Topics) Command(typeTag, id string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, typeTag, id)
}

// AllCommands returns the wildcard pattern matching every command topic.
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+/+"
}

// AllEvents returns the wildcard pattern matching every event topic.
func (Topics) AllEvents() string {
	return TopicPrefix + "/event/+/+"
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
