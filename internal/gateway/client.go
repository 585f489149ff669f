package gateway

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alireza-hadizadeh/socket-app/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Identity is the authentication state captured during the handshake.
// Re-authentication after connect is not supported; revoking the API
// key later does not downgrade a live connection.
type Identity struct {
	Authenticated bool
	UserId        int
	Username      string
	Role          types.Role
	ApiKey        string
}

type Client struct {
	id       string
	conn     *websocket.Conn
	gateway  *Gateway
	log      *log.Logger
	identity Identity
	send     chan *ServerEvent
	stop     chan struct{}
}

func NewClient(id string, identity Identity, conn *websocket.Conn, gw *Gateway, l *log.Logger) *Client {
	return &Client{
		id:       id,
		conn:     conn,
		gateway:  gw,
		log:      l,
		identity: identity,
		send:     make(chan *ServerEvent, 256),
		stop:     make(chan struct{}),
	}
}

func (c *Client) Id() string {
	return c.id
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Printf("write pump for %q exiting", c.id)
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}

			if !c.writeEvent(ev) {
				return
			}
		case <-c.stop:
			// drain anything queued before the stop, then close cleanly
			for {
				select {
				case ev := <-c.send:
					if !c.writeEvent(ev) {
						return
					}
				default:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					c.conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeEvent(ev *ServerEvent) bool {
	bytes, err := json.Marshal(ev)
	if err != nil {
		c.log.Println("failed to serialize event:", err)
		return true
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, bytes); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write event: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.gateway.DeregisterClient(c)
		c.log.Printf("read pump for %q exiting", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.log.Println("error parsing event:", err)
			c.queueMessage(ErrEvent("invalid event format"))
			continue
		}

		ev.client = c
		select {
		case c.gateway.inbound <- &ev:
		case <-c.stop:
			return
		}
	}
}

func (c *Client) queueMessage(ev *ServerEvent) bool {
	select {
	case c.send <- ev:
	default:
		c.log.Printf("send buffer full for %q, dropping %q", c.id, ev.Event)
		return false
	}

	return true
}

func (c *Client) stopClient() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
}
