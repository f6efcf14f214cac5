package watch

import "fmt"

// Kind is the type of a Change.
type Kind int

const (
	// Created means that Name was created in the watched directory.
	Created Kind = iota

	// Deleted means that Name was removed from the watched directory.
	Deleted

	// ModifiedContent means that the contents of a file changed.
	ModifiedContent

	// ModifiedMetadata means that the permissions, ownership, timestamps or
	// link count of an entry changed.
	ModifiedMetadata

	// MovedAway means that Name was moved out of the watched directory to a
	// location whose arrival wasn't reported alongside it.
	MovedAway

	// MovedIn means that Name was moved into the watched directory from a
	// location whose departure wasn't reported alongside it.
	MovedIn

	// Renamed means that FromName in FromHandle's directory was moved to Name
	// in Handle's directory. It's derived from an adjacent MovedAway/MovedIn
	// pair.
	Renamed

	// WatchRemoved means that the kernel dropped the watch for Handle, either
	// because it was removed explicitly or because its path was deleted.
	WatchRemoved

	// Overflow means that the kernel's event queue overflowed and changes
	// were lost.
	Overflow
)

var kindNames = map[Kind]string{
	Created:          "Created",
	Deleted:          "Deleted",
	ModifiedContent:  "ModifiedContent",
	ModifiedMetadata: "ModifiedMetadata",
	MovedAway:        "MovedAway",
	MovedIn:          "MovedIn",
	Renamed:          "Renamed",
	WatchRemoved:     "WatchRemoved",
	Overflow:         "Overflow",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Change is a single decoded event.
type Change struct {
	// Handle is the watch that reported the change.
	Handle int

	// Name is the name of the changed entry within Handle's path. It's empty
	// when the change is about the watched path itself.
	Name string

	IsDir  bool
	Kind   Kind
	Cookie uint32

	// FromHandle and FromName are only set for Renamed changes, and identify
	// where the entry was moved from.
	FromHandle int
	FromName   string
}

func (c Change) String() string {
	if c.Kind == Renamed {
		return fmt.Sprintf("%s(%d/%s -> %d/%s)", c.Kind, c.FromHandle, c.FromName,
			c.Handle, c.Name)
	}
	return fmt.Sprintf("%s(%d/%s)", c.Kind, c.Handle, c.Name)
}

// kindOf maps a record mask to the Kind it reports. Records that report none
// of the events that lds acts on aren't mapped.
func kindOf(mask uint32) (Kind, bool) {
	switch {
	case mask&InQOverflow != 0:
		return Overflow, true
	case mask&InIgnored != 0:
		return WatchRemoved, true
	case mask&InCreate != 0:
		return Created, true
	case mask&InDelete != 0:
		return Deleted, true
	case mask&InModify != 0:
		return ModifiedContent, true
	case mask&InAttrib != 0:
		return ModifiedMetadata, true
	case mask&InMovedFrom != 0:
		return MovedAway, true
	case mask&InMovedTo != 0:
		return MovedIn, true
	}
	return 0, false
}
