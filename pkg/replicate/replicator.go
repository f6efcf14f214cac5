// Package replicate propagates changes from the source tree to the
// destination tree. All paths passed to a Replicator are relative to the
// roots of the mirrored trees, and the empty path refers to the roots
// themselves.
package replicate

// Mode is how a file is replicated.
type Mode int

const (
	// Fresh copies the whole file.
	Fresh Mode = iota

	// Append only copies the bytes past the end of the destination's copy.
	// It's used for files that have grown since they were last replicated.
	Append
)

func (m Mode) String() string {
	if m == Append {
		return "append"
	}
	return "fresh"
}

// Replicator applies changes to the destination tree. Implementations are
// responsible for their own path escaping, and may take arbitrarily long.
type Replicator interface {
	// ReplicateDirectory makes the destination directory match the source
	// directory, including removing destination entries that no longer
	// exist in the source.
	ReplicateDirectory(relPath string) error

	ReplicateFile(relPath string, mode Mode) error

	// RemoveDestinationPath removes the path from the destination,
	// recursively if it's a directory. Removing a missing path succeeds.
	RemoveDestinationPath(relPath string) error

	RenameDestinationPath(oldRelPath, newRelPath string) error
}
