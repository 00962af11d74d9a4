package keyslot

import (
	"github.com/tjdeveng/keeptower/internal/crypto"
	"github.com/tjdeveng/keeptower/internal/policy"
	"github.com/tjdeveng/keeptower/internal/vaulterr"
)

// Table is the in-memory slot table, ordered by slot index. Index 0 is the
// first slot created and carries no special meaning beyond that; any active
// slot may hold the Administrator role.
type Table struct {
	Slots []Slot
}

// NewTable returns an empty table with no allocated slots.
func NewTable() *Table {
	return &Table{Slots: make([]Slot, 0, MaxSlots)}
}

// MarshalSlots encodes the slot table per §6.1: slot_count(u8) followed by
// slot_count × 128B entries.
func (t *Table) MarshalSlots() ([]byte, error) {
	if len(t.Slots) > MaxSlots {
		return nil, vaulterr.ErrCorrupted
	}
	out := make([]byte, 1, 1+len(t.Slots)*SlotSize)
	out[0] = byte(len(t.Slots))
	for _, s := range t.Slots {
		enc, err := s.Marshal()
		if err != nil {
			return nil, err
		}
		out = append(out, enc[:]...)
	}
	return out, nil
}

// UnmarshalSlots decodes a slot table starting at the front of data and
// returns the table plus bytes consumed.
func UnmarshalSlots(data []byte) (*Table, int, error) {
	if len(data) < 1 {
		return nil, 0, vaulterr.ErrCorrupted
	}
	count := int(data[0])
	off := 1
	if count > MaxSlots || len(data) < off+count*SlotSize {
		return nil, 0, vaulterr.ErrCorrupted
	}

	t := &Table{Slots: make([]Slot, 0, count)}
	for i := 0; i < count; i++ {
		s, err := UnmarshalSlot(data[off : off+SlotSize])
		if err != nil {
			return nil, 0, err
		}
		t.Slots = append(t.Slots, s)
		off += SlotSize
	}
	return t, off, nil
}

// FindActiveByUsername returns the index of the unique active slot with the
// given username, or -1 if none matches.
func (t *Table) FindActiveByUsername(username string) int {
	for i, s := range t.Slots {
		if s.Active && s.Username == username {
			return i
		}
	}
	return -1
}

// ActiveAdministratorCount counts active slots holding the Administrator
// role.
func (t *Table) ActiveAdministratorCount() int {
	n := 0
	for _, s := range t.Slots {
		if s.Active && s.Role == policy.RoleAdministrator {
			n++
		}
	}
	return n
}

// AllocateSlot places slot into the lowest-index inactive entry, growing the
// table (up to MaxSlots) if every existing entry is active.
func (t *Table) AllocateSlot(slot Slot) (int, error) {
	for i, s := range t.Slots {
		if !s.Active {
			t.Slots[i] = slot
			return i, nil
		}
	}
	if len(t.Slots) >= MaxSlots {
		return -1, vaulterr.ErrCorrupted
	}
	t.Slots = append(t.Slots, slot)
	return len(t.Slots) - 1, nil
}

// RemoveSlot zeroes and deactivates the slot at index i.
func (t *Table) RemoveSlot(i int) error {
	if i < 0 || i >= len(t.Slots) {
		return vaulterr.ErrUnknownUser
	}
	t.Slots[i] = Slot{}
	return nil
}

// CheckInvariants enforces the §4.6 slot-table invariants: at least one
// active Administrator, unique usernames among active slots, and (trial
// unwrap, expensive — reserved for tests, not production hot paths) that
// every active slot's wrapped DEK unwraps to the same plaintext.
func (t *Table) CheckInvariants() error {
	if t.ActiveAdministratorCount() < 1 {
		return vaulterr.ErrCannotRemoveLastAdmin
	}
	seen := make(map[string]struct{}, len(t.Slots))
	for _, s := range t.Slots {
		if !s.Active {
			continue
		}
		if _, dup := seen[s.Username]; dup {
			return vaulterr.ErrDuplicateUsername
		}
		seen[s.Username] = struct{}{}
	}
	return nil
}

// TrialUnwrapAllConsistent verifies every active slot's wrapped DEK unwraps
// (via the supplied provider and per-slot KEK deriver) to the same 32-byte
// DEK. Intended for tests, not production hot paths, per §4.6.
func (t *Table) TrialUnwrapAllConsistent(p crypto.Provider, kekFor func(Slot) ([]byte, error)) (bool, error) {
	var want []byte
	for _, s := range t.Slots {
		if !s.Active {
			continue
		}
		kek, err := kekFor(s)
		if err != nil {
			return false, err
		}
		dek, err := p.Unwrap(kek, s.WrappedDEK)
		if err != nil {
			return false, err
		}
		if want == nil {
			want = dek
			continue
		}
		if !crypto.CtEq(want, dek) {
			return false, nil
		}
	}
	return true, nil
}
