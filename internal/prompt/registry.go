package prompt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tradewatch/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Template is one prompt variant: the standing system instructions plus the
// header line rendered above the market data.
type Template struct {
	ID          string `mapstructure:"id" yaml:"id"`
	Description string `mapstructure:"description" yaml:"description"`
	Version     int    `mapstructure:"version" yaml:"version"`
	System      string `mapstructure:"system" yaml:"system"`
	Header      string `mapstructure:"header" yaml:"header"`
}

// FileConfig maps the prompts file.
type FileConfig struct {
	Prompts map[string]Template `mapstructure:"prompts" yaml:"prompts"`
}

// RegistrySnapshot is a point-in-time view of the loaded templates.
type RegistrySnapshot struct {
	Version   int64
	LoadedAt  time.Time
	Templates map[string]Template
}

// ChangeListener fires after a successful reload.
type ChangeListener func(RegistrySnapshot)

// Registry loads prompt templates from a YAML file and hot-reloads them on
// change, so prompt tuning does not require a restart.
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  RegistrySnapshot
	listeners []ChangeListener
}

func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("prompt registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read prompt config failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("prompt reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

func (r *Registry) Snapshot() RegistrySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneRegistrySnapshot(r.snapshot)
}

func (r *Registry) Template(id string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.snapshot.Templates[strings.TrimSpace(id)]
	return tpl, ok
}

func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	cfg, err := readPromptFile(r.path)
	if err != nil {
		return err
	}
	templates := make(map[string]Template)
	for name, tpl := range cfg.Prompts {
		norm := normalizeTemplate(name, tpl)
		templates[norm.ID] = norm
	}
	r.mu.Lock()
	r.snapshot = RegistrySnapshot{
		Version:   r.snapshot.Version + 1,
		LoadedAt:  time.Now(),
		Templates: templates,
	}
	r.mu.Unlock()
	logger.Infof("prompt registry loaded %d templates from %s", len(templates), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneRegistrySnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("prompt listener panic: %v", rec)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func normalizeTemplate(name string, tpl Template) Template {
	tpl.ID = strings.TrimSpace(tpl.ID)
	if tpl.ID == "" {
		tpl.ID = strings.TrimSpace(name)
	}
	if tpl.Version <= 0 {
		tpl.Version = 1
	}
	tpl.Description = strings.TrimSpace(tpl.Description)
	return tpl
}

func cloneRegistrySnapshot(src RegistrySnapshot) RegistrySnapshot {
	dst := RegistrySnapshot{
		Version:   src.Version,
		LoadedAt:  src.LoadedAt,
		Templates: make(map[string]Template, len(src.Templates)),
	}
	for id, tpl := range src.Templates {
		dst.Templates[id] = tpl
	}
	return dst
}

func readPromptFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read prompt config failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse prompt config failed: %w", err)
	}
	return cfg, nil
}
