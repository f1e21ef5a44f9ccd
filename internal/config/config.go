// Package config provides a configuration manager that loads and watches the JSON split rules file.
//
// The split rules name the key field identifying a quote and the objects to
// extract from it: {"key_field": "QuoteId", "extract_objects": ["QuoteCharges"]}.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sbtplatform/quote-splitter/internal/constants"
	"github.com/sbtplatform/quote-splitter/internal/fileutils"
	"github.com/ubuntu/decorate"
)

// Conf represents the split rules structure.
type Conf struct {
	KeyField       string   `json:"key_field"`
	ExtractObjects []string `json:"extract_objects"`
}

// Manager is a struct that manages the split rules.
type Manager struct {
	config     Conf
	lock       sync.RWMutex
	configPath string

	log *slog.Logger
}

type options struct {
	Logger *slog.Logger
}

// Options represents an optional function to override Manager default values.
type Options func(*options)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Options {
	return func(o *options) {
		o.Logger = log
	}
}

// New creates a new split rules manager with the specified path.
func New(path string, args ...Options) *Manager {
	opts := options{
		Logger: slog.Default(),
	}

	for _, opt := range args {
		opt(&opts)
	}

	return &Manager{
		configPath: path,
		log:        opts.Logger,
	}
}

// Load reads the split rules from the specified file and updates the internal state.
func (cm *Manager) Load() (err error) {
	defer decorate.OnError(&err, "could not load split rules from %s", cm.configPath)

	file, err := os.Open(cm.configPath)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer file.Close()

	var newConfig Conf
	if err := fileutils.ParseJSON(file, &newConfig); err != nil {
		return fmt.Errorf("decoding config JSON: %w", err)
	}

	if err := validate(newConfig); err != nil {
		return err
	}

	cm.lock.Lock()
	cm.config = newConfig
	cm.lock.Unlock()

	cm.log.Info("Split rules loaded", "config", newConfig)
	return nil
}

// validate rejects rules the pipeline could not apply safely.
func validate(c Conf) error {
	seen := make(map[string]struct{}, len(c.ExtractObjects))
	for _, name := range c.ExtractObjects {
		switch {
		case name == "":
			return fmt.Errorf("extract object names must not be empty")
		case name == constants.OriginalFolder:
			return fmt.Errorf("extract object %q collides with the archive folder", name)
		case name == constants.TrackingField:
			return fmt.Errorf("extract object %q collides with the tracking field", name)
		case strings.ContainsAny(name, `/\`):
			return fmt.Errorf("extract object %q must not contain path separators", name)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("duplicate extract object %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Watch starts watching the split rules file for changes.
//
// It returns two channels: one for configuration changes which result in a successful load and another for unrecoverable watcher errors.
func (cm *Manager) Watch(ctx context.Context) (changes <-chan struct{}, errors <-chan error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %v", err)
	}

	configDir, _ := filepath.Split(cm.configPath)
	if configDir == "" {
		configDir = "."
	}
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("failed to add directory %s to watcher: %v", configDir, err)
	}

	cm.log.Info("Watching split rules directory", "dir", configDir)
	changesCh := make(chan struct{}, 1)
	errorsCh := make(chan error, 1)

	// Initial load of the split rules
	if err := cm.Load(); err != nil {
		cm.log.Warn("Error loading initial split rules", "err", err)
	}

	go func() {
		defer close(changesCh)
		defer close(errorsCh)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				cm.log.Info("Split rules watcher stopped")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					errorsCh <- fmt.Errorf("watcher events channel closed unexpectedly")
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				if event.Name != cm.configPath {
					continue
				}

				cm.log.Debug("Split rules file changed. Reloading...")
				if err := cm.Load(); err != nil {
					cm.log.Warn("Error reloading split rules", "err", err)
					continue
				}

				select {
				case changesCh <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					errorsCh <- fmt.Errorf("watcher errors channel closed unexpectedly")
					return
				}
				cm.log.Warn("Watcher error", "err", err)
			}
		}
	}()

	return changesCh, errorsCh, nil
}

// KeyField returns the configured key field, falling back to the default when unset.
func (cm *Manager) KeyField() string {
	cm.lock.RLock()
	defer cm.lock.RUnlock()
	if cm.config.KeyField == "" {
		return constants.DefaultKeyField
	}
	return cm.config.KeyField
}

// ExtractObjects returns a copy of the configured extract object names, in configured order.
func (cm *Manager) ExtractObjects() []string {
	cm.lock.RLock()
	defer cm.lock.RUnlock()
	objects := make([]string, len(cm.config.ExtractObjects))
	copy(objects, cm.config.ExtractObjects)
	return objects
}
