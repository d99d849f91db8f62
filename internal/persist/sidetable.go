package persist

import (
	"github.com/roach88/multicast/internal/callback"
	"github.com/roach88/multicast/internal/ir"
)

// sideTable allocates target slots during one Serialize call.
// Receivers are keyed by callback.ReceiverKey; receivers without a key get
// a slot per use.
type sideTable struct {
	names map[any]string
	slots map[string]ir.Object
}

func newSideTable() *sideTable {
	return &sideTable{
		names: make(map[any]string),
		slots: make(map[string]ir.Object),
	}
}

func (t *sideTable) lookup(receiver any) (string, bool) {
	key, ok := callback.ReceiverKey(receiver)
	if !ok {
		return "", false
	}
	name, ok := t.names[key]
	return name, ok
}

// add stores obj in the next free slot and returns the slot name.
func (t *sideTable) add(receiver any, obj ir.Object) string {
	name := ir.TargetName(len(t.slots))
	t.slots[name] = obj
	if key, ok := callback.ReceiverKey(receiver); ok {
		t.names[key] = name
	}
	return name
}
