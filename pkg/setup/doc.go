// Package setup manages the device setup record: the cluster version and
// downloaded firmware images.
//
// Files in the device home directory:
//
//	<home>/.setup               current setup record (CBOR wire.Setup)
//	<home>/.setup.bak           previous setup record
//	<home>/<timestamp>/firmware one directory per firmware download
//
// The setup record is replaced with persistence.BackupFile, so after two
// successive writes .setup holds the second record and .setup.bak the first.
package setup
