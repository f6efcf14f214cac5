package replicate

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/lds/pkg/errors"
)

// Variables mocked for unit testing.
var (
	fs             = afero.NewOsFs()
	combinedOutput = (*exec.Cmd).CombinedOutput
)

// DefaultFlags are the rsync flags used when none are configured. Symbolic
// links, devices and special files are never mirrored, which matches how the
// source tree is watched.
var DefaultFlags = []string{"-a", "--no-links", "--no-D", "--partial"}

// MinimumVersion is the oldest rsync that supports --append-verify.
var MinimumVersion = goversion.Must(goversion.NewVersion("3.0.0"))

var versionPattern = regexp.MustCompile(`rsync\s+version\s+v?([0-9][0-9A-Za-z.+-]*)`)

// Rsync replicates changes by running rsync as a subprocess.
type Rsync struct {
	// Binary is the path to the rsync executable.
	Binary string
	Flags  []string

	Source      string
	Destination string

	// Exclude returns the patterns that rsync shouldn't transfer. It's a
	// function since the patterns can change while the daemon runs.
	Exclude func() []string
}

// NewRsync returns an Rsync that mirrors `source` into `destination`. Both
// paths must be absolute, so that rsync never mistakes a colon in a path for
// a remote host.
func NewRsync(binary string, flags []string, source, destination string) *Rsync {
	if binary == "" {
		binary = "rsync"
	}
	if len(flags) == 0 {
		flags = DefaultFlags
	}
	return &Rsync{
		Binary:      binary,
		Flags:       flags,
		Source:      source,
		Destination: destination,
	}
}

// ReplicateDirectory implements Replicator.
func (r *Rsync) ReplicateDirectory(relPath string) error {
	src, dst := r.paths(relPath)
	if err := makeParent(dst); err != nil {
		return err
	}

	// The trailing slashes make rsync copy the directory's contents rather
	// than the directory into itself.
	args := append(r.baseArgs(), "--delete", withSlash(src), withSlash(dst))
	return r.run(args)
}

// ReplicateFile implements Replicator.
func (r *Rsync) ReplicateFile(relPath string, mode Mode) error {
	src, dst := r.paths(relPath)
	if err := makeParent(dst); err != nil {
		return err
	}

	args := r.baseArgs()
	if mode == Append {
		args = append(args, "--append-verify")
	}
	args = append(args, src, dst)
	return r.run(args)
}

// RemoveDestinationPath implements Replicator.
func (r *Rsync) RemoveDestinationPath(relPath string) error {
	_, dst := r.paths(relPath)
	if dst == r.Destination {
		return errors.New("refusing to remove the destination root")
	}

	if err := fs.RemoveAll(dst); err != nil {
		return errors.WithContext(err, "remove")
	}
	return nil
}

// RenameDestinationPath implements Replicator.
func (r *Rsync) RenameDestinationPath(oldRelPath, newRelPath string) error {
	_, oldDst := r.paths(oldRelPath)
	_, newDst := r.paths(newRelPath)
	if err := makeParent(newDst); err != nil {
		return err
	}

	if err := fs.Rename(oldDst, newDst); err != nil {
		// The old path was never replicated. The caller replicates the new
		// path after renaming, so there's nothing to fix up.
		if os.IsNotExist(err) {
			log.WithField("path", oldDst).Debug("Rename source missing from destination")
			return nil
		}
		return errors.WithContext(err, "rename")
	}
	return nil
}

// CheckVersion returns the version of the rsync binary, and fails if it's
// older than MinimumVersion.
func (r *Rsync) CheckVersion() (*goversion.Version, error) {
	out, err := combinedOutput(exec.Command(r.Binary, "--version"))
	if err != nil {
		return nil, errors.WithContext(err, fmt.Sprintf("run %s --version", r.Binary))
	}

	version, err := ParseVersion(string(out))
	if err != nil {
		return nil, err
	}

	if version.LessThan(MinimumVersion) {
		return nil, errors.NewFriendlyError("rsync %s is too old. "+
			"lds requires rsync %s or newer.", version, MinimumVersion)
	}
	return version, nil
}

// ParseVersion extracts the version from the output of `rsync --version`.
func ParseVersion(output string) (*goversion.Version, error) {
	firstLine := strings.SplitN(output, "\n", 2)[0]
	match := versionPattern.FindStringSubmatch(firstLine)
	if match == nil {
		return nil, errors.Errorf("unrecognized rsync version output %q", firstLine)
	}

	version, err := goversion.NewVersion(match[1])
	if err != nil {
		return nil, errors.WithContext(err, "parse rsync version")
	}
	return version, nil
}

func (r *Rsync) baseArgs() []string {
	args := append([]string{}, r.Flags...)
	if r.Exclude != nil {
		for _, pattern := range r.Exclude() {
			args = append(args, "--exclude="+pattern)
		}
	}
	return args
}

func (r *Rsync) run(args []string) error {
	cmd := exec.Command(r.Binary, args...)
	log.WithField("args", args).Debug("Running rsync")

	out, err := combinedOutput(cmd)
	if err != nil {
		output := strings.TrimSpace(string(out))
		if output == "" {
			return errors.WithContext(err, "rsync")
		}
		return errors.WithContext(err, fmt.Sprintf("rsync (%s)", output))
	}
	return nil
}

func (r *Rsync) paths(relPath string) (src, dst string) {
	return filepath.Join(r.Source, relPath), filepath.Join(r.Destination, relPath)
}

func makeParent(path string) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WithContext(err, "make parent")
	}
	return nil
}

func withSlash(path string) string {
	if strings.HasSuffix(path, string(filepath.Separator)) {
		return path
	}
	return path + string(filepath.Separator)
}
