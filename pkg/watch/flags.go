package watch

// Event flags reported in a record's mask. The values are the Linux inotify
// ABI, and are declared here rather than taken from x/sys/unix so that
// records can be decoded on any platform.
const (
	InAccess       uint32 = 0x1
	InModify       uint32 = 0x2
	InAttrib       uint32 = 0x4
	InCloseWrite   uint32 = 0x8
	InCloseNowrite uint32 = 0x10
	InOpen         uint32 = 0x20
	InMovedFrom    uint32 = 0x40
	InMovedTo      uint32 = 0x80
	InCreate       uint32 = 0x100
	InDelete       uint32 = 0x200
	InDeleteSelf   uint32 = 0x400
	InMoveSelf     uint32 = 0x800
	InUnmount      uint32 = 0x2000
	InQOverflow    uint32 = 0x4000
	InIgnored      uint32 = 0x8000
	InOnlyDir      uint32 = 0x1000000
	InDontFollow   uint32 = 0x2000000
	InIsDir        uint32 = 0x40000000
)

// DirectoryMask is the set of events requested for directory watches.
// Content changes aren't requested because every regular file below the
// directory has a watch of its own.
const DirectoryMask = InAttrib | InCreate | InDelete | InMovedFrom | InMovedTo |
	InOnlyDir | InDontFollow

// FileMask is the set of events requested for regular file watches. Creation,
// removal and renames of the file are reported by its parent's watch.
const FileMask = InModify | InDontFollow

// headerSize is the size of the fixed part of a record: the watch handle, the
// mask, the cookie and the length of the name that follows.
const headerSize = 16
