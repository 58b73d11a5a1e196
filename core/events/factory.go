package events

import (
	"encoding/hex"

	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/core/types"
)

const TypeFactoryInstantiation = "factory.instantiation_created"

// FactoryInstantiation is emitted when the clone factory constructs a new sale
// instance from the registered template.
type FactoryInstantiation struct {
	Creator  [20]byte
	Instance [32]byte
	Count    uint64
}

func (FactoryInstantiation) EventType() string { return TypeFactoryInstantiation }

func (e FactoryInstantiation) Event() *types.Event {
	return &types.Event{
		Type: TypeFactoryInstantiation,
		Attributes: map[string]string{
			"creator":  hexAddr(e.Creator),
			"instance": hex.EncodeToString(e.Instance[:]),
			"count":    uintToString(e.Count),
		},
	}
}
