package mqtt

import "strings"

// Topic roots. Bridge topics are laid out as
// graylogic/{category}/{protocol}/{id}.
const (
	TopicPrefixBridge = "graylogic"
	TopicPrefixSystem = TopicPrefixBridge + "/system"
)

// Topic categories.
const (
	categoryState    = "state"
	categoryCommand  = "command"
	categoryAck      = "ack"
	categoryRequest  = "request"
	categoryResponse = "response"
	categoryHealth   = "health"
)

// Topics builds bridge topic names.
//
//	mqtt.Topics{}.BridgeState("eq3", "living-room") // graylogic/state/eq3/living-room
type Topics struct{}

func bridgeTopic(parts ...string) string {
	return TopicPrefixBridge + "/" + strings.Join(parts, "/")
}

// BridgeState is where a device's retained state is published.
func (Topics) BridgeState(protocol, deviceID string) string {
	return bridgeTopic(categoryState, protocol, deviceID)
}

// BridgeCommand is where commands for one device arrive.
func (Topics) BridgeCommand(protocol, deviceID string) string {
	return bridgeTopic(categoryCommand, protocol, deviceID)
}

func (Topics) BridgeAck(protocol, deviceID string) string {
	return bridgeTopic(categoryAck, protocol, deviceID)
}

func (Topics) BridgeRequest(protocol, requestID string) string {
	return bridgeTopic(categoryRequest, protocol, requestID)
}

func (Topics) BridgeResponse(protocol, requestID string) string {
	return bridgeTopic(categoryResponse, protocol, requestID)
}

// BridgeHealth carries the bridge's periodic health report.
func (Topics) BridgeHealth(protocol string) string {
	return bridgeTopic(categoryHealth, protocol)
}

// BridgeCommands matches the command topic of every device of protocol.
func (Topics) BridgeCommands(protocol string) string {
	return bridgeTopic(categoryCommand, protocol, "+")
}

// BridgeRequests matches every request topic of protocol.
func (Topics) BridgeRequests(protocol string) string {
	return bridgeTopic(categoryRequest, protocol, "+")
}

// SystemStatus carries the retained online/offline status and the will.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
