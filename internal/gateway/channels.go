package gateway

// ChannelTable maps channel names to member sets keyed by socket id.
// Channels exist only while they have members: the first join creates
// one, the last leave discards it. Like the Registry, it is owned and
// mutated exclusively by the Gateway run loop.
type ChannelTable struct {
	channels map[string]map[string]struct{}
}

func NewChannelTable() *ChannelTable {
	return &ChannelTable{
		channels: make(map[string]map[string]struct{}),
	}
}

// Join adds the connection to the channel, creating the channel if
// needed. It returns the new member count and whether the channel was
// created by this join.
func (ct *ChannelTable) Join(channel, socketId string) (int, bool) {
	members, ok := ct.channels[channel]
	if !ok {
		members = make(map[string]struct{})
		ct.channels[channel] = members
	}

	members[socketId] = struct{}{}
	return len(members), !ok
}

// Leave removes the connection from the channel and discards the
// channel once empty. It returns the remaining member count and
// whether the connection was actually a member.
func (ct *ChannelTable) Leave(channel, socketId string) (int, bool) {
	members, ok := ct.channels[channel]
	if !ok {
		return 0, false
	}

	if _, member := members[socketId]; !member {
		return len(members), false
	}

	delete(members, socketId)
	if len(members) == 0 {
		delete(ct.channels, channel)
		return 0, true
	}

	return len(members), true
}

// Members returns the current member snapshot, nil when the channel
// does not exist.
func (ct *ChannelTable) Members(channel string) []string {
	members, ok := ct.channels[channel]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}

	return ids
}

func (ct *ChannelTable) Count(channel string) int {
	return len(ct.channels[channel])
}

// RemoveConnection drops the connection from every channel it is in,
// returning the names of channels that became empty and were discarded.
func (ct *ChannelTable) RemoveConnection(socketId string) []string {
	var emptied []string
	for name, members := range ct.channels {
		if _, ok := members[socketId]; !ok {
			continue
		}

		delete(members, socketId)
		if len(members) == 0 {
			delete(ct.channels, name)
			emptied = append(emptied, name)
		}
	}

	return emptied
}

func (ct *ChannelTable) Len() int {
	return len(ct.channels)
}

func (ct *ChannelTable) Clear() {
	ct.channels = make(map[string]map[string]struct{})
}
