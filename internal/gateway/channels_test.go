package gateway

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelTableJoinLeave(t *testing.T) {
	ct := NewChannelTable()

	count, created := ct.Join("general", "sock1")
	assert.True(t, created, "expected first join to create the channel")
	assert.Equal(t, 1, count)

	count, created = ct.Join("general", "sock2")
	assert.False(t, created)
	assert.Equal(t, 2, count)

	// joining twice is idempotent
	count, _ = ct.Join("general", "sock2")
	assert.Equal(t, 2, count)

	count, wasMember := ct.Leave("general", "sock1")
	assert.True(t, wasMember)
	assert.Equal(t, 1, count)

	_, wasMember = ct.Leave("general", "sock1")
	assert.False(t, wasMember, "expected second leave to report non-membership")

	count, wasMember = ct.Leave("general", "sock2")
	assert.True(t, wasMember)
	assert.Equal(t, 0, count)
	assert.Equal(t, 0, ct.Len(), "expected empty channel to be discarded")

	_, wasMember = ct.Leave("nonexistent", "sock1")
	assert.False(t, wasMember)
}

// The broadcast member count always equals the cardinality of the
// membership set, across any sequence of joins and leaves.
func TestChannelTableCountInvariant(t *testing.T) {
	ct := NewChannelTable()

	for i := 0; i < 10; i++ {
		count, _ := ct.Join("room", fmt.Sprintf("sock%d", i))
		assert.Equal(t, i+1, count)
		assert.Equal(t, ct.Count("room"), count)
		assert.Len(t, ct.Members("room"), count)
	}

	for i := 0; i < 10; i++ {
		count, wasMember := ct.Leave("room", fmt.Sprintf("sock%d", i))
		assert.True(t, wasMember)
		assert.Equal(t, 10-i-1, count)
		assert.Equal(t, ct.Count("room"), count)
	}
}

func TestChannelTableRemoveConnection(t *testing.T) {
	ct := NewChannelTable()

	ct.Join("a", "sock1")
	ct.Join("b", "sock1")
	ct.Join("b", "sock2")

	emptied := ct.RemoveConnection("sock1")
	assert.Equal(t, []string{"a"}, emptied, "expected only the emptied channel to be reported")
	assert.Equal(t, 1, ct.Len())
	assert.Equal(t, 1, ct.Count("b"))

	assert.Nil(t, ct.Members("a"), "expected discarded channel to have no members")
}
