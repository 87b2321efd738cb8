// Package persistence provides crash-safe storage for the small configuration
// files a device keeps in its home directory (.setup, .acl).
//
// A BackupFile keeps the previous contents next to the current file with a
// ".bak" suffix. Replacing writes the new contents to a temporary file first,
// so at every point on disk there is either the current file or its backup.
package persistence
