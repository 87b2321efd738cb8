// Package security implements authorization for the device: the ACL table
// that maps identities to permissions, the lock and erase pins, and the
// engine-wide State that holds both.
//
// # Bootstrap
//
// A device starts without an ACL table and with empty pins. An empty pin
// matches any supplied pin, so a fresh device can be locked, unlocked and
// erased by anyone on a secure channel until pins are configured.
//
// # Persistence
//
// The ACL table and pins are stored as CBOR in <home>/.acl using
// persistence.BackupFile. The locked flag is runtime state only.
package security
