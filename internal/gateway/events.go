package gateway

import (
	"encoding/json"
	"time"
)

// Client-to-server event names.
const (
	EventSendMessage    = "send-message"
	EventIdentify       = "identify"
	EventPing           = "ping"
	EventJoinChannel    = "join-channel"
	EventLeaveChannel   = "leave-channel"
	EventChannelMessage = "channel-message"
	// EventCustomEvent is relayed back out under the same name.
	EventCustomEvent = "custom-event"
)

// Server-to-client event names.
const (
	EventAuthStatus             = "auth-status"
	EventUserConnected          = "user-connected"
	EventUserDisconnected       = "user-disconnected"
	EventReceiveMessage         = "receive-message"
	EventChannelMessageReceived = "channel-message-received"
	EventUserJoinedChannel      = "user-joined-channel"
	EventUserLeftChannel        = "user-left-channel"
	EventIdentified             = "identified"
	EventPong                   = "pong"
	EventError                  = "error"
	EventServerShuttingDown     = "server-shutting-down"
)

// ClientEvent is one inbound frame. Data is decoded lazily by the
// handler for the named event.
type ClientEvent struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
	client *Client
}

type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type SendMessagePayload struct {
	Text     string `json:"text"`
	Sender   string `json:"sender,omitempty"`
	Platform string `json:"platform,omitempty"`
}

type IdentifyPayload struct {
	UserId     string `json:"userId"`
	Platform   string `json:"platform,omitempty"`
	AppVersion string `json:"appVersion,omitempty"`
}

type ChannelPayload struct {
	Channel string `json:"channel"`
}

type ChannelMessagePayload struct {
	Channel  string `json:"channel"`
	Sender   string `json:"sender,omitempty"`
	Text     string `json:"text"`
	Platform string `json:"platform,omitempty"`
}

type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	UserId        int    `json:"userId,omitempty"`
	Username      string `json:"username,omitempty"`
	Role          string `json:"role,omitempty"`
}

type ConnectionNotice struct {
	SocketId       string    `json:"socketId"`
	Authenticated  bool      `json:"authenticated"`
	UserId         int       `json:"userId,omitempty"`
	UserRole       string    `json:"userRole,omitempty"`
	ConnectedAt    time.Time `json:"connectedAt"`
	TotalConnected int       `json:"totalConnected"`
	Timestamp      time.Time `json:"timestamp"`
}

type DisconnectionNotice struct {
	SocketId          string    `json:"socketId"`
	Platform          string    `json:"platform"`
	ConnectedDuration int64     `json:"connectedDuration"`
	TotalConnected    int       `json:"totalConnected"`
	Timestamp         time.Time `json:"timestamp"`
}

type BroadcastMessage struct {
	SocketId  string    `json:"socketId"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Platform  string    `json:"platform"`
	Timestamp time.Time `json:"timestamp"`
}

type ChannelBroadcastMessage struct {
	Channel   string    `json:"channel"`
	SocketId  string    `json:"socketId"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Platform  string    `json:"platform"`
	Timestamp time.Time `json:"timestamp"`
}

type ChannelMembershipNotice struct {
	Channel        string    `json:"channel"`
	UserId         string    `json:"userId"`
	TotalInChannel int       `json:"totalInChannel"`
	Timestamp      time.Time `json:"timestamp"`
}

// CustomEventNotice relays an opaque client payload to every live
// connection, tagged with the originating socket.
type CustomEventNotice struct {
	From      string          `json:"from"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type IdentifiedNotice struct {
	SocketId  string    `json:"socketId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type Timestamped struct {
	Timestamp time.Time `json:"timestamp"`
}

type ErrorNotice struct {
	Message string `json:"message"`
}

func ErrEvent(message string) *ServerEvent {
	return &ServerEvent{
		Event: EventError,
		Data:  ErrorNotice{Message: message},
	}
}

func PongEvent() *ServerEvent {
	return &ServerEvent{
		Event: EventPong,
		Data:  Timestamped{Timestamp: Now()},
	}
}

func ShutdownEvent() *ServerEvent {
	return &ServerEvent{
		Event: EventServerShuttingDown,
		Data:  Timestamped{Timestamp: Now()},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
