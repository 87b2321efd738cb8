package security

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/kinetic-sim/kinetic-go/pkg/persistence"
	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

// ACLFileName is the name of the security file in the device home.
const ACLFileName = ".acl"

// Snapshot is a consistent view of the security state.
type Snapshot struct {
	ACLs   Table
	Pins   Pins
	Locked bool
}

// aclFile is the on-disk form of the persistent part of a Snapshot.
type aclFile struct {
	ACLs []ACL `cbor:"1,keyasint,omitempty"`
	Pins Pins  `cbor:"2,keyasint"`
}

// State is the engine-wide security state. Readers always see the last
// committed snapshot; writers are serialized.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
	file *persistence.BackupFile
}

// NewState creates an unconfigured State. A nil file keeps the state in
// memory only.
func NewState(file *persistence.BackupFile) *State {
	return &State{file: file}
}

// Load reads the persisted ACL table and pins. A missing or empty file
// leaves the state unconfigured.
func (s *State) Load() error {
	if s.file == nil {
		return nil
	}
	data, err := s.file.Load()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var f aclFile
	if err := wire.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode %s: %w", s.file.Path(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Pins = f.Pins
	s.snap.ACLs = nil
	if len(f.ACLs) > 0 {
		s.snap.ACLs = make(Table, len(f.ACLs))
		for _, a := range f.ACLs {
			s.snap.ACLs[a.Identity] = a
		}
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ACLs: s.snap.ACLs.Clone(),
		Pins: Pins{
			Lock:  slices.Clone(s.snap.Pins.Lock),
			Erase: slices.Clone(s.snap.Pins.Erase),
		},
		Locked: s.snap.Locked,
	}
}

// Table returns a copy of the ACL table, nil if unconfigured.
func (s *State) Table() Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.ACLs.Clone()
}

// Pins returns a copy of the configured pins.
func (s *State) Pins() Pins {
	return s.Snapshot().Pins
}

// Locked reports whether the device is locked.
func (s *State) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Locked
}

// SetLocked sets the device lock flag.
func (s *State) SetLocked(locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Locked = locked
}

// Apply executes a SECURITY command sent by identity.
//
// Changing a pin requires a secure channel and the old pin. Once an ACL
// table exists the sender needs the SECURITY permission. The new state is
// persisted before it becomes visible; on a persistence error nothing
// changes.
func (s *State) Apply(identity int64, secure bool, cmd *wire.Security) error {
	if cmd == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changesPins := cmd.NewLockPin != nil || cmd.NewErasePin != nil
	if changesPins && !secure {
		return ErrSecureChannelRequired
	}
	if s.snap.ACLs != nil {
		if err := CheckPermission(s.snap.ACLs, identity, wire.PermissionSecurity); err != nil {
			return err
		}
	}

	next := Snapshot{
		ACLs:   s.snap.ACLs,
		Pins:   s.snap.Pins,
		Locked: s.snap.Locked,
	}
	if cmd.NewLockPin != nil {
		if !ComparePin(s.snap.Pins.Lock, cmd.OldLockPin) {
			return fmt.Errorf("%w: old lock pin", ErrPinMismatch)
		}
		next.Pins.Lock = slices.Clone(cmd.NewLockPin)
	}
	if cmd.NewErasePin != nil {
		if !ComparePin(s.snap.Pins.Erase, cmd.OldErasePin) {
			return fmt.Errorf("%w: old erase pin", ErrPinMismatch)
		}
		next.Pins.Erase = slices.Clone(cmd.NewErasePin)
	}
	if len(cmd.ACLs) > 0 {
		next.ACLs = TableFromWire(cmd.ACLs)
	}

	if err := s.persist(next); err != nil {
		return err
	}
	s.snap = next
	return nil
}

// Reset returns the state to unconfigured: no ACL table, empty pins,
// unlocked. The in-memory reset always happens; a persistence error is
// returned afterwards.
func (s *State) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap = Snapshot{}
	return s.persist(s.snap)
}

func (s *State) persist(snap Snapshot) error {
	if s.file == nil {
		return nil
	}

	f := aclFile{Pins: snap.Pins}
	for _, a := range snap.ACLs {
		f.ACLs = append(f.ACLs, a)
	}
	slices.SortFunc(f.ACLs, func(a, b ACL) int {
		return cmp.Compare(a.Identity, b.Identity)
	})

	data, err := wire.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode security state: %w", err)
	}
	return s.file.Replace(data)
}
