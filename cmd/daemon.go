package cmd

import (
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/lds/pkg/config"
	"github.com/sidkik/lds/pkg/errors"
	"github.com/sidkik/lds/pkg/fswatch"
	"github.com/sidkik/lds/pkg/mirror"
	"github.com/sidkik/lds/pkg/replicate"
	"github.com/sidkik/lds/pkg/watch"
)

func runDaemon(source, destination, configPath string) error {
	cfg, err := config.Parse(configPath)
	if err != nil {
		return errors.WithContext(err, "parse config")
	}

	source, destination, err = config.ValidateDirectories(source, destination)
	if err != nil {
		return err
	}

	capacity, err := config.MaxWatches()
	if err != nil {
		return errors.WithContext(err, "get watch limit")
	}

	ignore := config.NewIgnore(cfg.Exclude)
	rsync := replicate.NewRsync(cfg.Rsync.Path, cfg.Rsync.Flags, source, destination)
	rsync.Exclude = ignore.Patterns

	rsyncVersion, err := rsync.CheckVersion()
	if err != nil {
		return errors.WithContext(err, "check rsync")
	}

	notifier, err := watch.NewNotifier()
	if err != nil {
		return errors.WithContext(err, "create notifier")
	}

	if path := cfg.GetPath(); path != "" {
		if err := watchConfig(path, ignore); err != nil {
			log.WithError(err).WithField("path", path).Warn(
				"Failed to watch config file. Changes to it won't be applied until lds restarts.")
		}
	}

	log.WithFields(log.Fields{
		"source":      source,
		"destination": destination,
		"rsync":       rsyncVersion.String(),
		"watchLimit":  capacity,
	}).Info("Starting lds")

	engine := mirror.New(mirror.Options{
		Source:           source,
		Destination:      destination,
		Capacity:         capacity,
		LivenessInterval: cfg.LivenessInterval(),
		Ignore:           ignore.Match,
	}, notifier, rsync, log.StandardLogger())
	return engine.Run()
}

// watchConfig reloads the exclude rules whenever the config file changes.
// Paths that are already watched stay watched, but are no longer replicated
// once excluded.
func watchConfig(path string, ignore *config.Ignore) error {
	updates, err := fswatch.Watch(path)
	if err != nil {
		return err
	}

	go func() {
		for range updates {
			cfg, err := config.Parse(path)
			if err != nil {
				log.WithError(err).Warn("Failed to reload config. Keeping the previous exclude rules.")
				continue
			}

			ignore.SetPatterns(cfg.Exclude)
			log.WithField("exclude", ignore.Patterns()).Info("Reloaded exclude rules")
		}
	}()
	return nil
}
