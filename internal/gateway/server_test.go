package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/alireza-hadizadeh/socket-app/internal/audit"
	"github.com/alireza-hadizadeh/socket-app/internal/database"
	"github.com/alireza-hadizadeh/socket-app/internal/stats"
	"github.com/alireza-hadizadeh/socket-app/internal/testutil"
	"github.com/alireza-hadizadeh/socket-app/internal/types"
)

func newTestGateway(t *testing.T, db *database.MockRepository) (*Gateway, *stats.MockStatsUpdater) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Times(4)

	logger := testutil.TestLogger(t)
	gw := NewGateway(logger, audit.NewStore(logger, db), su)
	return gw, su
}

func newTestClient(t *testing.T, gw *Gateway, id string, identity Identity) *Client {
	return NewClient(id, identity, nil, gw, testutil.TestLogger(t))
}

func drainEvent(t *testing.T, c *Client) *ServerEvent {
	t.Helper()
	select {
	case ev := <-c.send:
		return ev
	default:
		t.Fatal("expected a queued event")
		return nil
	}
}

func TestHandleConnect(t *testing.T) {
	db := &database.MockRepository{}
	gw, su := newTestGateway(t, db)

	db.On("CreateConnection", mock.MatchedBy(func(p database.CreateConnectionParams) bool {
		return p.SocketId == "sock1" && p.Platform == "web" &&
			p.UserId != nil && *p.UserId == "1"
	})).Return(1, nil)
	su.On("Incr", metricActiveConnections)
	su.On("Incr", metricTotalConnections)

	client := newTestClient(t, gw, "sock1", Identity{
		Authenticated: true,
		UserId:        1,
		Username:      "tuser",
		Role:          types.RoleClient,
	})
	gw.handleConnect(client)

	assert.Contains(t, gw.clients, "sock1")
	entry, ok := gw.registry.Get("sock1")
	assert.True(t, ok)
	assert.True(t, entry.Authenticated)
	assert.Equal(t, "tuser", entry.Username)

	ev := drainEvent(t, client)
	assert.Equal(t, EventAuthStatus, ev.Event)
	status, ok := ev.Data.(AuthStatus)
	assert.True(t, ok)
	assert.True(t, status.Authenticated)
	assert.Equal(t, "tuser", status.Username)

	ev = drainEvent(t, client)
	assert.Equal(t, EventUserConnected, ev.Event)
	notice, ok := ev.Data.(ConnectionNotice)
	assert.True(t, ok)
	assert.Equal(t, 1, notice.TotalConnected)

	db.AssertExpectations(t)
	su.AssertExpectations(t)
}

func TestHandleConnectAnonymous(t *testing.T) {
	db := &database.MockRepository{}
	gw, su := newTestGateway(t, db)

	db.On("CreateConnection", mock.MatchedBy(func(p database.CreateConnectionParams) bool {
		return p.SocketId == "sock1" && p.UserId == nil
	})).Return(1, nil)
	su.On("Incr", mock.Anything)

	client := newTestClient(t, gw, "sock1", Identity{})
	gw.handleConnect(client)

	ev := drainEvent(t, client)
	assert.Equal(t, EventAuthStatus, ev.Event)
	status := ev.Data.(AuthStatus)
	assert.False(t, status.Authenticated)

	db.AssertExpectations(t)
}

func TestHandleDisconnect(t *testing.T) {
	db := &database.MockRepository{}
	gw, su := newTestGateway(t, db)

	db.On("CreateConnection", mock.Anything).Return(1, nil)
	db.On("FinishConnection", "sock1").Return(true, nil).Once()
	su.On("Incr", mock.Anything)
	su.On("Decr", metricActiveConnections).Once()

	client := newTestClient(t, gw, "sock1", Identity{})
	gw.handleConnect(client)
	gw.handleDisconnect(client)

	assert.NotContains(t, gw.clients, "sock1")
	_, ok := gw.registry.Get("sock1")
	assert.False(t, ok)

	select {
	case <-client.stop:
	default:
		t.Fatal("expected client to be stopped")
	}

	// a second disconnect must not finalize the record again
	gw.handleDisconnect(client)

	db.AssertExpectations(t)
	su.AssertExpectations(t)
}

func TestHandleShutdown(t *testing.T) {
	db := &database.MockRepository{}
	gw, su := newTestGateway(t, db)

	db.On("CreateConnection", mock.Anything).Return(1, nil)
	db.On("FinishConnection", mock.Anything).Return(true, nil).Twice()
	su.On("Incr", mock.Anything)

	c1 := newTestClient(t, gw, "sock1", Identity{})
	c2 := newTestClient(t, gw, "sock2", Identity{})
	gw.handleConnect(c1)
	gw.handleConnect(c2)

	gw.handleShutdown()

	assert.Empty(t, gw.clients)
	assert.Equal(t, 0, gw.registry.Len())

	var sawShutdown bool
	for len(c1.send) > 0 {
		if ev := <-c1.send; ev.Event == EventServerShuttingDown {
			sawShutdown = true
		}
	}
	assert.True(t, sawShutdown, "expected a shutdown notice")

	select {
	case <-gw.done:
	default:
		t.Fatal("expected done channel to be closed")
	}

	db.AssertExpectations(t)
}

func connectClient(t *testing.T, gw *Gateway, db *database.MockRepository, su *stats.MockStatsUpdater, id string, identity Identity) *Client {
	t.Helper()

	db.On("CreateConnection", mock.Anything).Return(1, nil)
	su.On("Incr", metricActiveConnections)
	su.On("Incr", metricTotalConnections)

	c := newTestClient(t, gw, id, identity)
	gw.handleConnect(c)
	// the connect broadcast reaches every live client, not just the
	// new one; start each test from empty queues
	for _, cc := range gw.clients {
		for len(cc.send) > 0 {
			<-cc.send
		}
	}
	return c
}

func clientEvent(c *Client, event string, payload any) *ClientEvent {
	data, _ := json.Marshal(payload)
	return &ClientEvent{Event: event, Data: data, client: c}
}

func TestHandleSendMessage(t *testing.T) {
	db := &database.MockRepository{}
	gw, su := newTestGateway(t, db)
	c := connectClient(t, gw, db, su, "sock1", Identity{
		Authenticated: true,
		UserId:        1,
		Username:      "tuser",
	})

	db.On("CreateMessage", mock.MatchedBy(func(p database.CreateMessageParams) bool {
		return p.SocketId == "sock1" && p.Sender == "tuser" &&
			p.Text == "hello" && p.Platform == "web"
	})).Return(1, nil).Once()
	su.On("Incr", metricMessagesReceived).Once()

	gw.dispatch(clientEvent(c, EventSendMessage, SendMessagePayload{Text: "hello"}))

	ev := drainEvent(t, c)
	assert.Equal(t, EventReceiveMessage, ev.Event)
	msg := ev.Data.(BroadcastMessage)
	assert.Equal(t, "tuser", msg.Sender)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "web", msg.Platform)

	db.AssertExpectations(t)
	su.AssertExpectations(t)
}

func TestHandleSendMessageUnauthenticated(t *testing.T) {
	db := &database.MockRepository{}
	gw, su := newTestGateway(t, db)
	c := connectClient(t, gw, db, su, "sock1", Identity{})

	gw.dispatch(clientEvent(c, EventSendMessage, SendMessagePayload{Text: "hello"}))

	ev := drainEvent(t, c)
	assert.Equal(t, EventError, ev.Event)
	assert.Equal(t, "Authentication required to send messages", ev.Data.(ErrorNotice).Message)

	db.AssertNotCalled(t, "CreateMessage", mock.Anything)
}

func TestHandleSendMessageEmptyText(t *testing.T) {
	db := &database.MockRepository{}
	gw, su := newTestGateway(t, db)
	c := connectClient(t, gw, db, su, "sock1", Identity{Authenticated: true, Username: "tuser"})

	gw.dispatch(clientEvent(c, EventSendMessage, SendMessagePayload{}))

	ev := drainEvent(t, c)
	assert.Equal(t, EventError, ev.Event)
	assert.Equal(t, "Failed to process message", ev.Data.(ErrorNotice).Message)

	db.AssertNotCalled(t, "CreateMessage", mock.Anything)
}

func TestHandleSendMessageSenderFallback(t *testing.T) {
	db := &database.MockRepository{}
	gw, su := newTestGateway(t, db)
	// authenticated key with no username on the account row
	c := connectClient(t, gw, db, su, "sock1", Identity{Authenticated: true})

	db.On("CreateMessage", mock.MatchedBy(func(p database.CreateMessageParams) bool {
		return p.Sender == "custom-sender"
	})).Return(1, nil).Once()
	su.On("Incr", metricMessagesReceived)

	gw.dispatch(clientEvent(c, EventSendMessage, SendMessagePayload{Text: "hi", Sender: "custom-sender"}))
	drainEvent(t, c)

	// no username and no payload sender falls back to the socket id
	db.On("CreateMessage", mock.MatchedBy(func(p database.CreateMessageParams) bool {
		return p.Sender == "sock1"
	})).Return(2, nil).Once()

	gw.dispatch(clientEvent(c, EventSendMessage, SendMessagePayload{Text: "hi"}))
	ev := drainEvent(t, c)
	assert.Equal(t, "sock1", ev.Data.(BroadcastMessage).Sender)

	db.AssertExpectations(t)
}

func TestHandlePing(t *testing.T) {
	db := &database.MockRepository{}
	gw, su := newTestGateway(t, db)
	c := connectClient(t, gw, db, su, "sock1", Identity{})

	gw.dispatch(&ClientEvent{Event: EventPing, client: c})

	ev := drainEvent(t, c)
	assert.Equal(t, EventPong, ev.Event)
}

func TestHandleIdentify(t *testing.T) {
	db := &database.MockRepository{}
	gw, su := newTestGateway(t, db)
	c := connectClient(t, gw, db, su, "sock1", Identity{})

	db.On("UpdateConnectionUser", "sock1", "ext-42", "ios").Return(true, nil).Once()

	gw.dispatch(clientEvent(c, EventIdentify, IdentifyPayload{UserId: "ext-42", Platform: "ios", AppVersion: "2.1.0"}))

	entry, _ := gw.registry.Get("sock1")
	assert.Equal(t, "ext-42", entry.ClientUserId)
	assert.Equal(t, "ios", entry.Platform)
	assert.Equal(t, "2.1.0", entry.AppVersion)

	ev := drainEvent(t, c)
	assert.Equal(t, EventIdentified, ev.Event)
	assert.Equal(t, "Client identified successfully", ev.Data.(IdentifiedNotice).Message)

	db.AssertExpectations(t)
}

func TestHandleIdentifyDefaults(t *testing.T) {
	db := &database.MockRepository{}
	gw, su := newTestGateway(t, db)
	c := connectClient(t, gw, db, su, "sock1", Identity{})

	db.On("UpdateConnectionUser", "sock1", "", "unknown").Return(true, nil).Once()

	gw.dispatch(clientEvent(c, EventIdentify, IdentifyPayload{}))

	entry, _ := gw.registry.Get("sock1")
	assert.Equal(t, "unknown", entry.Platform)
	assert.Equal(t, "unknown", entry.AppVersion)

	db.AssertExpectations(t)
}

func TestHandleJoinAndLeaveChannel(t *testing.T) {
	db := &database.MockRepository{}
	gw, su := newTestGateway(t, db)
	c1 := connectClient(t, gw, db, su, "sock1", Identity{Authenticated: true, Username: "alice"})
	c2 := connectClient(t, gw, db, su, "sock2", Identity{Authenticated: true, Username: "bob"})

	su.On("Incr", metricActiveChannels).Once()
	gw.dispatch(clientEvent(c1, EventJoinChannel, ChannelPayload{Channel: "general"}))

	ev := drainEvent(t, c1)
	assert.Equal(t, EventUserJoinedChannel, ev.Event)
	joined := ev.Data.(ChannelMembershipNotice)
	assert.Equal(t, "alice", joined.UserId)
	assert.Equal(t, 1, joined.TotalInChannel)

	gw.dispatch(clientEvent(c2, EventJoinChannel, ChannelPayload{Channel: "general"}))
	ev = drainEvent(t, c1)
	assert.Equal(t, EventUserJoinedChannel, ev.Event)
	assert.Equal(t, 2, ev.Data.(ChannelMembershipNotice).TotalInChannel)
	drainEvent(t, c2)

	gw.dispatch(clientEvent(c2, EventLeaveChannel, ChannelPayload{Channel: "general"}))
	ev = drainEvent(t, c1)
	assert.Equal(t, EventUserLeftChannel, ev.Event)
	left := ev.Data.(ChannelMembershipNotice)
	assert.Equal(t, "bob", left.UserId)
	assert.Equal(t, 1, left.TotalInChannel)
	assert.Empty(t, c2.send, "expected no notice for the departed member")

	su.On("Decr", metricActiveChannels).Once()
	gw.dispatch(clientEvent(c1, EventLeaveChannel, ChannelPayload{Channel: "general"}))
	assert.Equal(t, 0, gw.channels.Len())

	su.AssertExpectations(t)
}

func TestHandleJoinChannelUnauthenticated(t *testing.T) {
	db := &database.MockRepository{}
	gw, su := newTestGateway(t, db)
	c := connectClient(t, gw, db, su, "sock1", Identity{})

	gw.dispatch(clientEvent(c, EventJoinChannel, ChannelPayload{Channel: "general"}))

	ev := drainEvent(t, c)
	assert.Equal(t, EventError, ev.Event)
	assert.Equal(t, "Authentication required to join channels", ev.Data.(ErrorNotice).Message)
	assert.Equal(t, 0, gw.channels.Count("general"))
}

func TestHandleChannelMessage(t *testing.T) {
	db := &database.MockRepository{}
	gw, su := newTestGateway(t, db)
	c1 := connectClient(t, gw, db, su, "sock1", Identity{Authenticated: true, Username: "alice"})
	c2 := connectClient(t, gw, db, su, "sock2", Identity{Authenticated: true, Username: "bob"})
	c3 := connectClient(t, gw, db, su, "sock3", Identity{Authenticated: true, Username: "carol"})

	su.On("Incr", metricActiveChannels)
	gw.dispatch(clientEvent(c1, EventJoinChannel, ChannelPayload{Channel: "general"}))
	gw.dispatch(clientEvent(c2, EventJoinChannel, ChannelPayload{Channel: "general"}))
	for len(c1.send) > 0 {
		<-c1.send
	}
	for len(c2.send) > 0 {
		<-c2.send
	}

	gw.dispatch(clientEvent(c1, EventChannelMessage, ChannelMessagePayload{Channel: "general", Text: "hi"}))

	for _, member := range []*Client{c1, c2} {
		ev := drainEvent(t, member)
		assert.Equal(t, EventChannelMessageReceived, ev.Event)
		msg := ev.Data.(ChannelBroadcastMessage)
		assert.Equal(t, "general", msg.Channel)
		assert.Equal(t, "alice", msg.Sender)
		assert.Equal(t, "hi", msg.Text)
	}
	assert.Empty(t, c3.send, "expected non-members to receive nothing")

	// channel traffic is ephemeral
	db.AssertNotCalled(t, "CreateMessage", mock.Anything)
}

func TestHandleCustomEvent(t *testing.T) {
	db := &database.MockRepository{}
	gw, su := newTestGateway(t, db)
	c1 := connectClient(t, gw, db, su, "sock1", Identity{})
	c2 := connectClient(t, gw, db, su, "sock2", Identity{Authenticated: true, Username: "bob"})

	raw := json.RawMessage(`{"kind":"telemetry","value":3}`)
	gw.dispatch(&ClientEvent{Event: EventCustomEvent, Data: raw, client: c1})

	for _, member := range []*Client{c1, c2} {
		ev := drainEvent(t, member)
		assert.Equal(t, EventCustomEvent, ev.Event)
		notice := ev.Data.(CustomEventNotice)
		assert.Equal(t, "sock1", notice.From)
		assert.JSONEq(t, string(raw), string(notice.Data))
	}

	db.AssertNotCalled(t, "CreateMessage", mock.Anything)
}

// A client's first frame must never be processed before its own
// registration, whichever channel the run loop finds ready first.
func TestRunRegistersBeforeDispatch(t *testing.T) {
	db := &database.MockRepository{}
	gw, su := newTestGateway(t, db)

	db.On("CreateConnection", mock.Anything).Return(1, nil)
	db.On("FinishConnection", mock.Anything).Return(true, nil)
	su.On("Incr", mock.Anything)
	su.On("Decr", mock.Anything).Maybe()

	c := newTestClient(t, gw, "sock1", Identity{})
	gw.registerChan <- c
	gw.inbound <- &ClientEvent{Event: EventPing, client: c}

	go gw.Run()

	deadline := time.After(5 * time.Second)
	var events []string
	for len(events) < 3 {
		select {
		case ev := <-c.send:
			events = append(events, ev.Event)
		case <-deadline:
			t.Fatalf("timed out waiting for events, got %v", events)
		}
	}
	assert.Equal(t, []string{EventAuthStatus, EventUserConnected, EventPong}, events)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, gw.Shutdown(ctx))
}

func TestRegisterClientAfterShutdown(t *testing.T) {
	db := &database.MockRepository{}
	gw, _ := newTestGateway(t, db)

	go gw.Run()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, gw.Shutdown(ctx))
	assert.True(t, gw.Stopped())

	c := newTestClient(t, gw, "late", Identity{})
	assert.False(t, gw.RegisterClient(c), "expected registration to be refused after shutdown")
	assert.Empty(t, gw.clients)

	db.AssertNotCalled(t, "CreateConnection", mock.Anything)
}

func TestDispatchUnknownSocket(t *testing.T) {
	db := &database.MockRepository{}
	gw, _ := newTestGateway(t, db)

	c := newTestClient(t, gw, "ghost", Identity{Authenticated: true})
	gw.dispatch(clientEvent(c, EventSendMessage, SendMessagePayload{Text: "hi"}))

	assert.Empty(t, c.send, "expected events from unregistered sockets to be dropped")
	db.AssertNotCalled(t, "CreateMessage", mock.Anything)
}
