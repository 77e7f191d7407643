package config

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// ReloadCallback is invoked after a successful reload with the previous and
// the new configuration. Returning an error rejects the new configuration.
type ReloadCallback func(old, new *Config) error

// ConfigReloader hot-reloads the configuration on SIGHUP and, when a config
// file path is set, on file changes. Settings that would require rebuilding
// the crypto engine or the storage backend are rejected at reload time.
type ConfigReloader struct {
	path    string
	logger  *logrus.Logger
	watcher *fsnotify.Watcher

	mu       sync.RWMutex
	current  *Config
	onReload ReloadCallback

	sighup chan os.Signal
	done   chan struct{}
	stop   sync.Once
}

// NewConfigReloader creates a reloader seeded with the current config. An
// empty path disables file watching; SIGHUP handling is always active.
func NewConfigReloader(path string, current *Config, logger *logrus.Logger) (*ConfigReloader, error) {
	r := &ConfigReloader{
		path:    path,
		logger:  logger,
		current: current,
		sighup:  make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}

	if path != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create file watcher: %w", err)
		}
		if err := watcher.Add(path); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch config file: %w", err)
		}
		r.watcher = watcher
	}

	signal.Notify(r.sighup, syscall.SIGHUP)
	return r, nil
}

// SetOnReloadCallback registers the function called after each successful
// reload.
func (r *ConfigReloader) SetOnReloadCallback(cb ReloadCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReload = cb
}

// GetCurrentConfig returns a copy of the active configuration.
func (r *ConfigReloader) GetCurrentConfig() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg := *r.current
	return &cfg
}

// Start blocks processing reload triggers until Stop is called. Run it in
// its own goroutine.
func (r *ConfigReloader) Start() {
	var events chan fsnotify.Event
	var errs chan error
	if r.watcher != nil {
		events = r.watcher.Events
		errs = r.watcher.Errors
	}

	for {
		select {
		case <-r.done:
			return
		case <-r.sighup:
			r.logger.Info("Received SIGHUP, reloading configuration")
			r.reload()
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				r.logger.WithField("file", event.Name).Info("Config file changed, reloading")
				r.reload()
			}
			// Editors often replace the file; re-arm the watch.
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				r.watcher.Add(r.path)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.logger.WithError(err).Warn("Config file watcher error")
		}
	}
}

// Stop terminates the reload loop and releases the watcher.
func (r *ConfigReloader) Stop() {
	r.stop.Do(func() {
		close(r.done)
		signal.Stop(r.sighup)
		if r.watcher != nil {
			r.watcher.Close()
		}
	})
}

func (r *ConfigReloader) reload() {
	newConfig, err := LoadConfig(r.path)
	if err != nil {
		r.logger.WithError(err).Error("Failed to load new configuration, keeping current")
		return
	}

	r.mu.Lock()
	old := r.current
	cb := r.onReload
	r.mu.Unlock()

	if err := r.validateReloadSafety(old, newConfig); err != nil {
		r.logger.WithError(err).Error("Rejected configuration reload")
		return
	}

	if cb != nil {
		if err := cb(old, newConfig); err != nil {
			r.logger.WithError(err).Error("Reload callback rejected new configuration")
			return
		}
	}

	r.mu.Lock()
	r.current = newConfig
	r.mu.Unlock()
	r.logger.Info("Configuration reloaded")
}

// validateReloadSafety rejects changes that cannot be applied to a running
// gateway. Key material and layout-affecting settings require a restart.
func (r *ConfigReloader) validateReloadSafety(old, new *Config) error {
	if old.Encryption.Password != new.Encryption.Password {
		return fmt.Errorf("encryption.password cannot be changed during hot reload")
	}
	if old.Encryption.KeyFile != new.Encryption.KeyFile {
		return fmt.Errorf("encryption.key_file cannot be changed during hot reload")
	}
	if old.Encryption.Transformation != new.Encryption.Transformation {
		return fmt.Errorf("encryption.transformation cannot be changed during hot reload")
	}
	if old.Encryption.BufferSize != new.Encryption.BufferSize {
		return fmt.Errorf("encryption.buffer_size cannot be changed during hot reload")
	}
	if old.Storage.Backend != new.Storage.Backend {
		return fmt.Errorf("storage.backend cannot be changed during hot reload")
	}
	if old.Storage.File.Root != new.Storage.File.Root {
		return fmt.Errorf("storage.file.root cannot be changed during hot reload")
	}
	if old.Metadata.Path != new.Metadata.Path {
		return fmt.Errorf("metadata.path cannot be changed during hot reload")
	}
	return nil
}
