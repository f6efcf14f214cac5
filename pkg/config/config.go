// Package config loads the daemon configuration and validates the
// environment lds runs in.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/sidkik/lds/pkg/errors"
)

const (
	// DefaultPath is where the config is read from when no path is given on
	// the command line. It's fine for it not to exist.
	DefaultPath = "~/.lds.yaml"

	// SupportedVersion is the config version understood by this binary.
	// Config files that don't specify a version default to it.
	SupportedVersion = "v1alpha1"

	// DefaultLivenessInterval is how often the worker liveness is polled.
	DefaultLivenessInterval = 5 * time.Second
)

// parseConfigErrTemplate is a template for when the config file fails to
// parse. The yaml library constructs errors in a way that loses context, so
// we can only pass the error message on.
const parseConfigErrTemplate = "Configuration file could not be parsed. " +
	"Please review %q.\n" +
	"Common pitfalls include:\n" +
	" - Using the wrong types for fields\n" +
	" - Having extra fields inside the config file\n\n" +
	"For reference, here is the error from the parser:\n" +
	"%s"

// Config is the daemon configuration.
type Config struct {
	Version string `json:"version,omitempty"`

	// Exclude are patterns for paths that are neither watched nor
	// replicated. See Ignore for how they're matched.
	Exclude []string `json:"exclude,omitempty"`

	Rsync Rsync `json:"rsync,omitempty"`

	LivenessSeconds int `json:"livenessSeconds,omitempty"`

	// Only populated by lds. Never set by the user.
	path string
}

// Rsync configures the replication subprocess.
type Rsync struct {
	Path  string   `json:"path,omitempty"`
	Flags []string `json:"flags,omitempty"`
}

// GetPath returns the path that the config was parsed from, or the empty
// string if the defaults are in use.
func (c Config) GetPath() string {
	return c.path
}

// LivenessInterval returns how often worker liveness should be checked.
func (c Config) LivenessInterval() time.Duration {
	if c.LivenessSeconds <= 0 {
		return DefaultLivenessInterval
	}
	return time.Duration(c.LivenessSeconds) * time.Second
}

func (c Config) getVersion() string {
	return c.Version
}

// Default returns the config used when no config file exists.
func Default() Config {
	return Config{
		Version: SupportedVersion,
		Exclude: withAlwaysIgnored(nil),
		Rsync:   Rsync{Path: "rsync"},
	}
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// Parse reads the config at `path`. If `path` is empty, DefaultPath is used,
// and a missing file results in the default config.
func Parse(path string) (Config, error) {
	optional := path == ""
	if optional {
		path = DefaultPath
	}

	path, err := homedirExpand(path)
	if err != nil {
		return Config{}, errors.WithContext(err, "expand config path")
	}

	config := Config{Version: SupportedVersion}
	if err := parseConfig(path, &config, SupportedVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok && optional {
			return Default(), nil
		}
		return Config{}, errors.WithContext(err, "parse")
	}

	config.path = path
	config.Exclude = withAlwaysIgnored(config.Exclude)
	if config.Rsync.Path == "" {
		config.Rsync.Path = "rsync"
	}

	config.Rsync.Path, err = homedir.Expand(config.Rsync.Path)
	if err != nil {
		return Config{}, errors.WithContext(err, "expand rsync path")
	}
	return config, nil
}

type configInterface interface {
	getVersion() string
}

type incompatibleVersionError struct {
	path, exp, actual string
}

func (err incompatibleVersionError) Error() string {
	return err.FriendlyMessage()
}

func (err incompatibleVersionError) FriendlyMessage() string {
	return fmt.Sprintf("The configuration file %q is incompatible "+
		"with this version of lds.\n"+
		"Expected version %q, but got %q.", err.path, err.exp, err.actual)
}

func parseConfig(path string, config configInterface, expVersion string) error {
	configBytes, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.FileNotFound{Path: path}
		}
		return errors.WithContext(err, "read file")
	}

	err = yaml.Unmarshal(configBytes, config)
	if err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}

	if config.getVersion() != expVersion {
		return incompatibleVersionError{path, expVersion, config.getVersion()}
	}

	// Do a strict unmarshal to check for any extra fields. We do a non-strict
	// unmarshal first so that we can catch version errors before erroring on
	// extra fields.
	err = yaml.UnmarshalStrict(configBytes, config, yaml.DisallowUnknownFields)
	if err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}
	return nil
}
