package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alireza-hadizadeh/socket-app/internal/testutil"
)

func Test_queueMessage(t *testing.T) {
	c := NewClient("sock1", Identity{}, nil, nil, testutil.TestLogger(t))

	ok := c.queueMessage(PongEvent())
	assert.True(t, ok)

	ev := <-c.send
	assert.Equal(t, EventPong, ev.Event)
}

func Test_queueMessageFullBuffer(t *testing.T) {
	c := NewClient("sock1", Identity{}, nil, nil, testutil.TestLogger(t))
	c.send = make(chan *ServerEvent, 1)

	assert.True(t, c.queueMessage(PongEvent()))
	assert.False(t, c.queueMessage(PongEvent()), "expected event to be dropped when the buffer is full")
	assert.Len(t, c.send, 1)
}

func Test_stopClient(t *testing.T) {
	c := NewClient("sock1", Identity{}, nil, nil, testutil.TestLogger(t))

	c.stopClient()
	select {
	case <-c.stop:
	default:
		t.Fatal("expected stop channel to be closed")
	}

	// stopping twice must not panic
	c.stopClient()
}

func TestClientId(t *testing.T) {
	c := NewClient("sock1", Identity{}, nil, nil, testutil.TestLogger(t))
	assert.Equal(t, "sock1", c.Id())
}
