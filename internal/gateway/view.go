package gateway

import (
	"github.com/flemzord/tgrelay/internal/channel"
	"github.com/flemzord/tgrelay/internal/relay"
)

// channelJSON is a serializable channel snapshot.
type channelJSON struct {
	ID         string               `json:"id"`
	Handle     uint32               `json:"handle"`
	HandleType string               `json:"handle_type"`
	Kind       string               `json:"kind"`
	Room       *channel.RoomInfo    `json:"room,omitempty"`
	Members    []channel.Member     `json:"members,omitempty"`
	Pending    []relay.PendingEntry `json:"pending"`
}

func viewChannel(r *relay.Relay) channelJSON {
	id := r.Identity()
	v := channelJSON{
		ID:         id.TargetID,
		Handle:     uint32(id.TargetHandle),
		HandleType: id.TargetHandleType.String(),
		Kind:       "direct",
		Pending:    r.Pending(),
	}
	if g, ok := r.Channel().Group(); ok {
		room := g.Room.Snapshot()
		v.Kind = "group"
		v.Room = &room
		v.Members = g.Roster.Members()
	}
	return v
}
