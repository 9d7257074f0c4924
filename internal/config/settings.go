package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// DefaultPollInterval applies when the settings file has none.
const DefaultPollInterval = 2 * time.Second

// DefaultWatchDebounce is how long the watcher waits after the last change
// event before reloading.
const DefaultWatchDebounce = 300 * time.Millisecond

// Settings are user preferences that may change while the server runs.
type Settings struct {
	PollInterval Duration `yaml:"poll_interval"`
	Theme        string   `yaml:"theme"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() Settings {
	return Settings{PollInterval: Duration(DefaultPollInterval), Theme: "dark"}
}

// normalize fills unset fields from the defaults.
func (s Settings) normalize() Settings {
	def := DefaultSettings()
	if s.PollInterval <= 0 {
		s.PollInterval = def.PollInterval
	}
	if s.Theme == "" {
		s.Theme = def.Theme
	}
	return s
}

// LoadSettings reads the settings file at path. A missing file yields the
// defaults without error.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return s.normalize(), nil
}

// SaveSettings writes s to path, creating the parent directory if needed.
// The file is replaced by rename so a watcher never reads a partial write.
func SaveSettings(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// SettingsWatcher keeps the current Settings in memory and reloads them
// when the file changes. Its PollInterval method is a live interval source
// for pollers.
type SettingsWatcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu       sync.RWMutex
	current  Settings
	override time.Duration
	onChange []func(Settings)

	stopOnce  sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewSettingsWatcher loads path and starts watching its directory. The
// directory is created if it does not exist so that a settings file written
// later is picked up.
func NewSettingsWatcher(path string, debounce time.Duration) (*SettingsWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	initial, err := LoadSettings(path)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watching the directory survives editors that save by rename.
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	sw := &SettingsWatcher{
		path:      path,
		debounce:  debounce,
		watcher:   w,
		current:   initial,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	go sw.loop()
	return sw, nil
}

// Current returns the most recently loaded settings.
func (sw *SettingsWatcher) Current() Settings {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.current
}

// SetOverride pins the polling interval regardless of the file. Zero
// removes the override.
func (sw *SettingsWatcher) SetOverride(d time.Duration) {
	sw.mu.Lock()
	sw.override = d
	sw.mu.Unlock()
}

// PollInterval returns the interval pollers should sleep for next.
func (sw *SettingsWatcher) PollInterval() time.Duration {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	if sw.override > 0 {
		return sw.override
	}
	return sw.current.PollInterval.Std()
}

// OnChange registers fn to run after every successful reload.
func (sw *SettingsWatcher) OnChange(fn func(Settings)) {
	sw.mu.Lock()
	sw.onChange = append(sw.onChange, fn)
	sw.mu.Unlock()
}

// Reload re-reads the settings file immediately. A failed read keeps the
// previous settings.
func (sw *SettingsWatcher) Reload() error {
	s, err := LoadSettings(sw.path)
	if err != nil {
		return err
	}
	sw.mu.Lock()
	sw.current = s
	hooks := append([]func(Settings){}, sw.onChange...)
	sw.mu.Unlock()

	for _, fn := range hooks {
		fn(s)
	}
	return nil
}

// Stop ends the watch loop and releases the watcher. It is safe to call
// more than once.
func (sw *SettingsWatcher) Stop() {
	sw.stopOnce.Do(func() {
		close(sw.stopCh)
		<-sw.stoppedCh
	})
}

func (sw *SettingsWatcher) loop() {
	defer close(sw.stoppedCh)
	defer sw.watcher.Close()

	base := filepath.Base(sw.path)
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)

	for {
		select {
		case <-sw.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(sw.debounce)
			timerCh = timer.C

		case <-timerCh:
			timer, timerCh = nil, nil
			if err := sw.Reload(); err != nil {
				log.Printf("settings: reload %s: %v", sw.path, err)
			}

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("settings: watch %s: %v", sw.path, err)
		}
	}
}
