package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sidkik/lds/cmd/util"
	"github.com/sidkik/lds/pkg/config"
	"github.com/sidkik/lds/pkg/errors"
	"github.com/sidkik/lds/pkg/replicate"
	"github.com/sidkik/lds/pkg/version"
)

// New creates a new `version` command.
func New() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version of lds and of the rsync it uses.",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(configPath); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "",
		fmt.Sprintf("path to the config file (default %s)", config.DefaultPath))
	return cmd
}

func run(configPath string) error {
	fmt.Printf("lds version:   %s\n", version.Version)

	cfg, err := config.Parse(configPath)
	if err != nil {
		return errors.WithContext(err, "parse config")
	}

	rsyncVersion, err := replicate.NewRsync(cfg.Rsync.Path, nil, "", "").CheckVersion()
	if err != nil {
		return errors.WithContext(err, "get rsync version")
	}
	fmt.Printf("rsync version: %s\n", rsyncVersion)
	return nil
}
