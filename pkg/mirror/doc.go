// Package mirror keeps a destination directory in sync with a source
// directory. An Engine watches the source tree, decodes the kernel's change
// records, and dispatches each change to a replicate.Replicator.
//
// The initial walk of the source tree and the live event stream are ordered
// by a barrier, and every call into the Replicator is serialized, so that at
// most one replication runs against the destination at a time.
package mirror
