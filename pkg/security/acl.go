package security

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"

	"github.com/kinetic-sim/kinetic-go/pkg/wire"
	"golang.org/x/crypto/blake2b"
)

// Authorization errors.
var (
	ErrNotAuthorized         = errors.New("not authorized")
	ErrPinMismatch           = errors.New("pin mismatch")
	ErrSecureChannelRequired = errors.New("secure channel required")
)

// ACL is the permission entry of one identity.
type ACL struct {
	Identity    int64             `cbor:"1,keyasint"`
	Key         []byte            `cbor:"2,keyasint,omitempty"`
	Permissions []wire.Permission `cbor:"3,keyasint,omitempty"`
	TLSRequired bool              `cbor:"4,keyasint,omitempty"`
}

// Has returns true if the entry grants p.
func (a ACL) Has(p wire.Permission) bool {
	return slices.Contains(a.Permissions, p)
}

// Table maps identities to their ACL entry.
// A nil Table means no security has been configured.
type Table map[int64]ACL

// TableFromWire builds a table from the ACL list of a SECURITY command.
// Returns nil for an empty list.
func TableFromWire(acls []wire.ACL) Table {
	if len(acls) == 0 {
		return nil
	}
	t := make(Table, len(acls))
	for _, a := range acls {
		t[a.Identity] = ACL{
			Identity:    a.Identity,
			Key:         slices.Clone(a.Key),
			Permissions: slices.Clone(a.Permissions),
			TLSRequired: a.TLSRequired,
		}
	}
	return t
}

// Clone returns a deep copy of t.
func (t Table) Clone() Table {
	if t == nil {
		return nil
	}
	out := make(Table, len(t))
	for id, a := range t {
		a.Key = slices.Clone(a.Key)
		a.Permissions = slices.Clone(a.Permissions)
		out[id] = a
	}
	return out
}

// CheckPermission succeeds iff table grants perm to identity.
// An unknown identity, or a nil table, yields ErrNotAuthorized.
func CheckPermission(table Table, identity int64, perm wire.Permission) error {
	acl, ok := table[identity]
	if !ok {
		return fmt.Errorf("%w: unknown identity %d", ErrNotAuthorized, identity)
	}
	if !acl.Has(perm) {
		return fmt.Errorf("%w: identity %d lacks %s", ErrNotAuthorized, identity, perm)
	}
	return nil
}

// Pins holds the lock and erase secrets. Empty means unset.
type Pins struct {
	Lock  []byte `cbor:"1,keyasint,omitempty"`
	Erase []byte `cbor:"2,keyasint,omitempty"`
}

// ComparePin reports whether supplied matches configured in constant time.
// An empty configured pin matches anything, including an empty supplied pin.
func ComparePin(configured, supplied []byte) bool {
	if len(configured) == 0 {
		return true
	}
	return subtle.ConstantTimeCompare(configured, supplied) == 1
}

// Fingerprint returns a short, stable, non-reversible tag for a pin,
// suitable for logs.
func Fingerprint(pin []byte) string {
	sum := blake2b.Sum256(pin)
	return hex.EncodeToString(sum[:8])
}
