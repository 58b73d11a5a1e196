package events

import "github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/core/types"

const TypeWhitelistUpdated = "whitelist.membership_updated"

// WhitelistUpdated is emitted when the whitelist owner adds or removes a batch
// of members. It exists for external observability only; the sale engine never
// consumes it.
type WhitelistUpdated struct {
	Added   bool
	Count   int
	Members [][20]byte
}

func (WhitelistUpdated) EventType() string { return TypeWhitelistUpdated }

func (e WhitelistUpdated) Event() *types.Event {
	action := "removed"
	if e.Added {
		action = "added"
	}
	attrs := map[string]string{
		"action": action,
		"count":  intToString(int64(e.Count)),
	}
	for i, member := range e.Members {
		attrs["member"+intToString(int64(i))] = hexAddr(member)
	}
	return &types.Event{Type: TypeWhitelistUpdated, Attributes: attrs}
}
