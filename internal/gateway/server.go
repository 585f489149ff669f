package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"

	"github.com/alireza-hadizadeh/socket-app/internal/audit"
	"github.com/alireza-hadizadeh/socket-app/internal/stats"
)

const defaultPlatform = "web"

// Metric names maintained by the run loop.
const (
	metricActiveConnections = "NumActiveConnections"
	metricTotalConnections  = "NumTotalConnections"
	metricMessagesReceived  = "NumMessagesReceived"
	metricActiveChannels    = "NumActiveChannels"
)

// Gateway orchestrates every connection: it authenticates state per
// event, maintains the registry and channel table, records audit
// events, and fans broadcasts out to live clients. All mutable state
// is confined to the Run goroutine; clients communicate with it
// through channels only.
type Gateway struct {
	log      *log.Logger
	audit    *audit.Store
	stats    stats.StatsProvider
	registry *Registry
	channels *ChannelTable
	clients  map[string]*Client

	registerChan   chan *Client
	deRegisterChan chan *Client
	inbound        chan *ClientEvent
	stop           chan struct{}
	done           chan struct{}
}

func NewGateway(logger *log.Logger, auditStore *audit.Store, su stats.StatsProvider) *Gateway {
	su.RegisterMetric(metricActiveConnections)
	su.RegisterMetric(metricTotalConnections)
	su.RegisterMetric(metricMessagesReceived)
	su.RegisterMetric(metricActiveChannels)

	return &Gateway{
		log:            logger,
		audit:          auditStore,
		stats:          su,
		registry:       NewRegistry(),
		channels:       NewChannelTable(),
		clients:        make(map[string]*Client),
		registerChan:   make(chan *Client, 64),
		deRegisterChan: make(chan *Client, 64),
		inbound:        make(chan *ClientEvent, 256),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// RegisterClient hands the connection to the run loop. It reports false
// once shutdown has begun; the caller must close the transport itself in
// that case.
func (g *Gateway) RegisterClient(c *Client) bool {
	select {
	case <-g.stop:
		return false
	default:
	}

	select {
	case g.registerChan <- c:
		return true
	case <-g.stop:
		return false
	}
}

func (g *Gateway) DeregisterClient(c *Client) {
	select {
	case g.deRegisterChan <- c:
	case <-g.done:
	}
}

// Stopped reports whether shutdown has begun and new connections are no
// longer accepted.
func (g *Gateway) Stopped() bool {
	select {
	case <-g.stop:
		return true
	default:
		return false
	}
}

func (g *Gateway) Run() {
	for {
		// drain registrations ahead of inbound events so a client's
		// first frame cannot outrun its own registration
		select {
		case c := <-g.registerChan:
			g.handleConnect(c)
			continue
		default:
		}

		select {
		case c := <-g.registerChan:
			g.handleConnect(c)
		case c := <-g.deRegisterChan:
			g.handleDisconnect(c)
		case ev := <-g.inbound:
			g.dispatch(ev)
		case <-g.stop:
			g.handleShutdown()
			return
		}
	}
}

// Shutdown broadcasts a shutdown notice, closes every client transport
// and stops the run loop.
func (g *Gateway) Shutdown(ctx context.Context) error {
	close(g.stop)

	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) handleConnect(c *Client) {
	g.log.Printf("client connected: socket=%q authenticated=%t user=%q",
		c.id, c.identity.Authenticated, c.identity.Username)

	entry := &Entry{
		SocketId:      c.id,
		Authenticated: c.identity.Authenticated,
		UserId:        c.identity.UserId,
		Username:      c.identity.Username,
		Role:          c.identity.Role,
		ApiKey:        c.identity.ApiKey,
		Platform:      defaultPlatform,
		ConnectedAt:   Now(),
	}
	g.registry.Add(entry)
	g.clients[c.id] = c

	var userId *string
	if c.identity.Authenticated {
		id := strconv.Itoa(c.identity.UserId)
		userId = &id
	}

	if _, err := g.audit.RecordConnect(c.id, entry.Platform, userId); err != nil {
		if errors.Is(err, audit.ErrDuplicateSocket) {
			// should never happen while the registry holds the socket
			g.log.Printf("BUG: duplicate connect for socket %q", c.id)
		} else {
			g.log.Println("RecordConnect:", err)
		}
	}

	g.stats.Incr(metricActiveConnections)
	g.stats.Incr(metricTotalConnections)

	c.queueMessage(&ServerEvent{
		Event: EventAuthStatus,
		Data: AuthStatus{
			Authenticated: entry.Authenticated,
			UserId:        entry.UserId,
			Username:      entry.Username,
			Role:          string(entry.Role),
		},
	})

	g.broadcastAll(&ServerEvent{
		Event: EventUserConnected,
		Data: ConnectionNotice{
			SocketId:       entry.SocketId,
			Authenticated:  entry.Authenticated,
			UserId:         entry.UserId,
			UserRole:       string(entry.Role),
			ConnectedAt:    entry.ConnectedAt,
			TotalConnected: len(g.clients),
			Timestamp:      Now(),
		},
	})
}

func (g *Gateway) handleDisconnect(c *Client) {
	if _, ok := g.clients[c.id]; !ok {
		// already disconnected, nothing to finalize
		return
	}

	delete(g.clients, c.id)
	entry, _ := g.registry.Remove(c.id)
	for range g.channels.RemoveConnection(c.id) {
		g.stats.Decr(metricActiveChannels)
	}

	if _, err := g.audit.RecordDisconnect(c.id); err != nil {
		g.log.Println("RecordDisconnect:", err)
	}
	g.stats.Decr(metricActiveConnections)

	notice := DisconnectionNotice{
		SocketId:       c.id,
		Platform:       "unknown",
		TotalConnected: len(g.clients),
		Timestamp:      Now(),
	}
	if entry != nil {
		notice.Platform = entry.Platform
		notice.ConnectedDuration = Now().Sub(entry.ConnectedAt).Milliseconds()
	}

	g.log.Printf("client disconnected: socket=%q duration=%dms", c.id, notice.ConnectedDuration)
	g.broadcastAll(&ServerEvent{
		Event: EventUserDisconnected,
		Data:  notice,
	})

	c.stopClient()
}

func (g *Gateway) handleShutdown() {
	// registrations that raced the shutdown signal get their transports
	// closed without ever being registered
drain:
	for {
		select {
		case c := <-g.registerChan:
			c.stopClient()
		default:
			break drain
		}
	}

	g.log.Println("gateway shutting down,", len(g.clients), "clients connected")

	g.broadcastAll(ShutdownEvent())

	for id, c := range g.clients {
		if _, err := g.audit.RecordDisconnect(id); err != nil {
			g.log.Println("RecordDisconnect:", err)
		}
		c.stopClient()
	}

	g.clients = make(map[string]*Client)
	g.registry.Clear()
	g.channels.Clear()
	close(g.done)
}

func (g *Gateway) dispatch(ev *ClientEvent) {
	entry, ok := g.registry.Get(ev.client.id)
	if !ok {
		// connection raced its own disconnect, drop the event
		return
	}

	switch ev.Event {
	case EventSendMessage:
		g.handleSendMessage(ev, entry)
	case EventIdentify:
		g.handleIdentify(ev, entry)
	case EventPing:
		ev.client.queueMessage(PongEvent())
	case EventJoinChannel:
		g.handleJoinChannel(ev, entry)
	case EventLeaveChannel:
		g.handleLeaveChannel(ev, entry)
	case EventChannelMessage:
		g.handleChannelMessage(ev, entry)
	case EventCustomEvent:
		g.handleCustomEvent(ev, entry)
	default:
		g.log.Printf("unknown event %q from socket %q", ev.Event, ev.client.id)
	}
}

func (g *Gateway) handleSendMessage(ev *ClientEvent, entry *Entry) {
	if !entry.Authenticated {
		ev.client.queueMessage(ErrEvent("Authentication required to send messages"))
		return
	}

	var payload SendMessagePayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil || payload.Text == "" {
		ev.client.queueMessage(ErrEvent("Failed to process message"))
		return
	}

	sender := entry.Username
	if sender == "" {
		sender = payload.Sender
	}
	if sender == "" {
		sender = entry.SocketId
	}

	platform := payload.Platform
	if platform == "" {
		platform = defaultPlatform
	}

	if _, err := g.audit.RecordMessage(entry.SocketId, sender, payload.Text, platform); err != nil {
		g.log.Println("RecordMessage:", err)
		ev.client.queueMessage(ErrEvent("Failed to process message"))
		return
	}

	g.stats.Incr(metricMessagesReceived)

	g.broadcastAll(&ServerEvent{
		Event: EventReceiveMessage,
		Data: BroadcastMessage{
			SocketId:  entry.SocketId,
			Sender:    sender,
			Text:      payload.Text,
			Platform:  platform,
			Timestamp: Now(),
		},
	})
}

func (g *Gateway) handleIdentify(ev *ClientEvent, entry *Entry) {
	var payload IdentifyPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		ev.client.queueMessage(ErrEvent("invalid event format"))
		return
	}

	if payload.Platform == "" {
		payload.Platform = "unknown"
	}
	if payload.AppVersion == "" {
		payload.AppVersion = "unknown"
	}

	entry.ClientUserId = payload.UserId
	entry.Platform = payload.Platform
	entry.AppVersion = payload.AppVersion

	if _, err := g.audit.SetConnectionUser(entry.SocketId, payload.UserId, payload.Platform); err != nil {
		g.log.Println("SetConnectionUser:", err)
		return
	}

	ev.client.queueMessage(&ServerEvent{
		Event: EventIdentified,
		Data: IdentifiedNotice{
			SocketId:  entry.SocketId,
			Message:   "Client identified successfully",
			Timestamp: Now(),
		},
	})
}

// membershipName is the identity used in channel membership notices:
// the username when the connection is authenticated, the socket id
// otherwise.
func membershipName(entry *Entry) string {
	if entry.Username != "" {
		return entry.Username
	}
	return entry.SocketId
}

func (g *Gateway) handleJoinChannel(ev *ClientEvent, entry *Entry) {
	if !entry.Authenticated {
		ev.client.queueMessage(ErrEvent("Authentication required to join channels"))
		return
	}

	var payload ChannelPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil || payload.Channel == "" {
		return
	}

	count, created := g.channels.Join(payload.Channel, entry.SocketId)
	if created {
		g.stats.Incr(metricActiveChannels)
	}

	g.broadcastChannel(payload.Channel, &ServerEvent{
		Event: EventUserJoinedChannel,
		Data: ChannelMembershipNotice{
			Channel:        payload.Channel,
			UserId:         membershipName(entry),
			TotalInChannel: count,
			Timestamp:      Now(),
		},
	})
}

func (g *Gateway) handleLeaveChannel(ev *ClientEvent, entry *Entry) {
	var payload ChannelPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil || payload.Channel == "" {
		return
	}

	count, wasMember := g.channels.Leave(payload.Channel, entry.SocketId)
	if !wasMember {
		return
	}

	if count == 0 {
		g.stats.Decr(metricActiveChannels)
		return
	}

	g.broadcastChannel(payload.Channel, &ServerEvent{
		Event: EventUserLeftChannel,
		Data: ChannelMembershipNotice{
			Channel:        payload.Channel,
			UserId:         membershipName(entry),
			TotalInChannel: count,
			Timestamp:      Now(),
		},
	})
}

func (g *Gateway) handleChannelMessage(ev *ClientEvent, entry *Entry) {
	if !entry.Authenticated {
		ev.client.queueMessage(ErrEvent("Authentication required to send channel messages"))
		return
	}

	var payload ChannelMessagePayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil || payload.Channel == "" || payload.Text == "" {
		return
	}

	sender := entry.Username
	if sender == "" {
		sender = payload.Sender
	}
	if sender == "" {
		sender = entry.SocketId
	}

	platform := payload.Platform
	if platform == "" {
		platform = defaultPlatform
	}

	// channel messages are ephemeral, delivered to members only and
	// never persisted
	g.broadcastChannel(payload.Channel, &ServerEvent{
		Event: EventChannelMessageReceived,
		Data: ChannelBroadcastMessage{
			Channel:   payload.Channel,
			SocketId:  entry.SocketId,
			Sender:    sender,
			Text:      payload.Text,
			Platform:  platform,
			Timestamp: Now(),
		},
	})
}

// handleCustomEvent relays an opaque payload to all connections. No
// auth required, nothing validated, nothing persisted.
func (g *Gateway) handleCustomEvent(ev *ClientEvent, entry *Entry) {
	g.broadcastAll(&ServerEvent{
		Event: EventCustomEvent,
		Data: CustomEventNotice{
			From:      entry.SocketId,
			Data:      ev.Data,
			Timestamp: Now(),
		},
	})
}

// broadcastAll queues the event on every live connection. Clients that
// disconnect mid-broadcast simply miss the event.
func (g *Gateway) broadcastAll(ev *ServerEvent) {
	for _, c := range g.clients {
		c.queueMessage(ev)
	}
}

// broadcastChannel delivers only to current channel members; a no-op
// when the channel does not exist.
func (g *Gateway) broadcastChannel(channel string, ev *ServerEvent) {
	for _, id := range g.channels.Members(channel) {
		if c, ok := g.clients[id]; ok {
			c.queueMessage(ev)
		}
	}
}
