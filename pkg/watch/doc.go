/*
Package watch tracks a source tree with the kernel notification facility
(inotify) and turns its raw event stream into Changes.

There are three pieces:
1) The Table maps kernel watch handles to the paths they were installed on,
   and enforces the kernel's watch limit. Running out of watches is fatal,
   because the kernel would silently stop reporting changes for the paths
   that couldn't be watched.
2) The Walker installs watches on every directory and regular file below a
   directory when it's first seen.
3) The Stream reads raw buffers from the kernel, and the Decoder turns each
   buffer into an ordered sequence of Changes. Adjacent moved-from/moved-to
   records that share a cookie are collapsed into a single Renamed change.
*/
package watch
