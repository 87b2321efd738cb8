// Package pinop executes pin operations: LOCK, UNLOCK, ERASE and
// SECURE_ERASE.
//
// A pin operation is handled in one pass. It is refused with
// INVALID_REQUEST on a channel without TLS before any pin is compared.
// LOCK and UNLOCK compare against the lock pin, the erase operations
// against the erase pin; an empty configured pin accepts any supplied pin.
// A rejected pin yields NOT_AUTHORIZED.
//
// # Erase
//
// A successful ERASE or SECURE_ERASE returns the device to its
// as-manufactured state in three steps:
//
//  1. reset the key-value store
//  2. reset the setup record to cluster version 0
//  3. reset the ACL table and pins, which also unlocks the device
//
// A failing step is logged and the remaining steps still run, so the
// device never stays half-erased because of a configuration write error.
// Only a store failure changes the response status (INTERNAL_ERROR).
// Both erase kinds run the same steps.
package pinop
