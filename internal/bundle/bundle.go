// Package bundle holds the dependency bundles a sandbox can load before user
// code runs. A Registry is built once at startup and never mutated, so it is
// shared by every sandbox without locking.
package bundle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dop251/goja"

	"github.com/hlop3z/formsandbox/internal/fserr"
)

// Standard bundle names.
const (
	Utility     = "utility-library"
	Dates       = "date-library"
	FormLogic   = "form-logic-library"
	ObjectModel = "object-model-shim"
	Templating  = "templating-library"
)

// Source is one named piece of JavaScript, compiled ahead of time.
type Source struct {
	Name    string
	Text    string
	program *goja.Program
}

// Program returns the compiled program. Programs are immutable and may run
// in any number of runtimes concurrently.
func (s Source) Program() *goja.Program {
	return s.program
}

// Builder collects bundles before the Registry is frozen.
type Builder struct {
	order   []string
	bundles map[string][]Source
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{bundles: make(map[string][]Source)}
}

// Register adds (or replaces) the sources of a named bundle. Each source is
// named "<bundle>#<n>" unless registered through RegisterSource.
func (b *Builder) Register(name string, sources ...string) *Builder {
	srcs := make([]Source, len(sources))
	for i, text := range sources {
		srcs[i] = Source{Name: fmt.Sprintf("%s#%d", name, i), Text: text}
	}
	return b.set(name, srcs)
}

// RegisterSource adds a bundle made of already named sources.
func (b *Builder) RegisterSource(name string, sources ...Source) *Builder {
	return b.set(name, append([]Source(nil), sources...))
}

func (b *Builder) set(name string, srcs []Source) *Builder {
	if _, ok := b.bundles[name]; !ok {
		b.order = append(b.order, name)
	}
	b.bundles[name] = srcs
	return b
}

// Build compiles every source and freezes the result.
// A source that does not compile is a configuration bug and fails the build.
func (b *Builder) Build() (*Registry, error) {
	reg := &Registry{bundles: make(map[string][]Source, len(b.bundles))}
	for _, name := range b.order {
		if name == "" {
			return nil, fserr.New(fserr.ErrDependencyInvalid, "bundle name is empty")
		}
		srcs := make([]Source, len(b.bundles[name]))
		for i, src := range b.bundles[name] {
			prog, err := goja.Compile(src.Name, src.Text, false)
			if err != nil {
				info := parseCompileError(err)
				return nil, fserr.Wrap(fserr.ErrDependencyInvalid, err, "dependency source does not compile").
					WithDependency(name).
					With("source", src.Name).
					WithLocation(info.line, info.column)
			}
			src.program = prog
			srcs[i] = src
		}
		reg.bundles[name] = srcs
		reg.names = append(reg.names, name)
	}
	sort.Strings(reg.names)
	return reg, nil
}

// Registry maps dependency names to compiled sources. It is read-only.
type Registry struct {
	names   []string
	bundles map[string][]Source
}

// Resolve returns the sources of a bundle in load order.
func (r *Registry) Resolve(name string) ([]Source, error) {
	if r != nil {
		if srcs, ok := r.bundles[name]; ok {
			return srcs, nil
		}
	}
	err := fserr.New(fserr.ErrDependencyNotFound, "unknown dependency").WithDependency(name)
	if r != nil {
		if hint := fserr.DidYouMean(name, r.names); hint != "" {
			err.WithHelp(hint)
		}
		if len(r.names) > 0 {
			err.WithNote("available: " + strings.Join(r.names, ", "))
		}
	}
	return nil, err
}

// Has reports whether a bundle is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.bundles[name]
	return ok
}

// Names lists registered bundles in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

type compileInfo struct {
	line, column int
}

func parseCompileError(err error) compileInfo {
	if se, ok := err.(*goja.CompilerSyntaxError); ok && se.File != nil {
		pos := se.File.Position(se.Offset)
		return compileInfo{line: pos.Line, column: pos.Column}
	}
	return compileInfo{}
}
