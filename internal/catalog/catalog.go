// Package catalog keeps the form definitions of a directory in memory and
// reloads them when the files change.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hlop3z/formsandbox/internal/form"
	"github.com/hlop3z/formsandbox/internal/fserr"
)

// debounce coalesces the burst of events an editor save produces.
const debounce = 100 * time.Millisecond

// Catalog maps form names to parsed schemas.
type Catalog struct {
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	forms map[string]*form.Schema
	files map[string]string // file -> form name
}

// Load reads every .json, .yaml and .yml file under dir.
func Load(dir string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{dir: dir, logger: logger, forms: map[string]*form.Schema{}, files: map[string]string{}}
	if err := c.Reload(); err != nil {
		return c, err
	}
	return c, nil
}

// Dir returns the watched directory.
func (c *Catalog) Dir() string {
	return c.dir
}

// Get returns the form called name.
func (c *Catalog) Get(name string) (*form.Schema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.forms[name]
	return s, ok
}

// Names returns the loaded form names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.forms))
	for n := range c.forms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Reload re-reads the directory. A file that fails to parse keeps its last
// good version; the failures are returned joined.
func (c *Catalog) Reload() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fserr.Wrap(fserr.ErrConfigInvalid, err, "cannot read forms directory").With("file", c.dir)
	}

	c.mu.RLock()
	prevFiles := c.files
	prevForms := c.forms
	c.mu.RUnlock()

	forms := map[string]*form.Schema{}
	files := map[string]string{}
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !isFormFile(e.Name()) {
			continue
		}
		path := filepath.Join(c.dir, e.Name())
		s, err := ParseFile(path)
		if err != nil {
			errs = append(errs, err)
			if name, ok := prevFiles[path]; ok && prevForms[name] != nil {
				forms[name] = prevForms[name]
				files[path] = name
			}
			continue
		}
		name := Name(path, s)
		if other, dup := forms[name]; dup && other != nil {
			errs = append(errs, fserr.Newf(fserr.ErrSchemaInvalid, "form %q is defined twice", name).With("file", path))
			continue
		}
		forms[name] = s
		files[path] = name
	}

	c.mu.Lock()
	c.forms = forms
	c.files = files
	c.mu.Unlock()
	return errors.Join(errs...)
}

// Watch reloads the catalog whenever a form file changes until ctx ends.
// onReload, when set, runs after each reload.
func (c *Catalog) Watch(ctx context.Context, onReload func(names []string, err error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fserr.Wrap(fserr.ErrInternal, err, "file watcher failed")
	}
	defer w.Close()
	if err := w.Add(c.dir); err != nil {
		return fserr.Wrap(fserr.ErrConfigInvalid, err, "cannot watch forms directory").With("file", c.dir)
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isFormFile(ev.Name) || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			err := c.Reload()
			if err != nil {
				c.logger.Warn("forms reloaded with errors", "dir", c.dir, "error", err)
			} else {
				c.logger.Info("forms reloaded", "dir", c.dir, "forms", len(c.Names()))
			}
			if onReload != nil {
				onReload(c.Names(), err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("file watcher error", "error", err)
		}
	}
}

// ParseFile parses a JSON or YAML form definition.
func ParseFile(path string) (*form.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fserr.Wrap(fserr.ErrSchemaInvalid, err, "cannot read form").With("file", path)
	}
	var s *form.Schema
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		s, err = form.ParseYAML(data)
	default:
		s, err = form.ParseJSON(data)
	}
	if err != nil {
		var fe *fserr.Error
		if errors.As(err, &fe) {
			return nil, fe.With("file", path)
		}
		return nil, err
	}
	return s, nil
}

// Name is the schema's own name, or the file name without extension.
func Name(path string, s *form.Schema) string {
	if s != nil && s.Name != "" {
		return s.Name
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isFormFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
