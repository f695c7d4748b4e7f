package workflow

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern matches definition files below a workflows directory.
const DefaultPattern = "**/*.{yaml,yml}"

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Catalog holds definitions by name. Later additions replace earlier ones
// with the same name.
type Catalog struct {
	defs map[string]Definition
}

func NewCatalog() *Catalog {
	return &Catalog{defs: map[string]Definition{}}
}

// Builtin returns a catalog of the coordinator and reflection definitions
// plus the embedded YAML ones.
func Builtin() (*Catalog, error) {
	c := NewCatalog()
	c.Add(coordinatorDefinition())
	c.Add(reflectionDefinition())
	if err := c.loadFS(builtinFS, "builtin/*.yaml", builtinSource); err != nil {
		return nil, err
	}
	return c, nil
}

// Load returns the builtin catalog extended with every definition found
// under dir. An empty dir loads only builtins.
func Load(dir string) (*Catalog, error) {
	c, err := Builtin()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return c, nil
	}
	if err := c.LoadDir(dir, DefaultPattern); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadDir adds the definitions under dir whose relative paths match pattern.
func (c *Catalog) LoadDir(dir, pattern string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("workflows dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workflows dir %s: not a directory", dir)
	}
	return c.loadFS(os.DirFS(dir), pattern, dir+string(os.PathSeparator))
}

func (c *Catalog) loadFS(fsys fs.FS, pattern, sourcePrefix string) error {
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(matches)
	for _, m := range matches {
		b, err := fs.ReadFile(fsys, m)
		if err != nil {
			return err
		}
		def, err := Parse(b, sourcePrefix+path.Clean(m))
		if err != nil {
			return err
		}
		c.Add(def)
	}
	return nil
}

func (c *Catalog) Add(def Definition) {
	if c.defs == nil {
		c.defs = map[string]Definition{}
	}
	c.defs[def.Name] = def
}

func (c *Catalog) Get(name string) (Definition, bool) {
	def, ok := c.defs[name]
	return def, ok
}

// Lookup returns the named definition when it has the given kind.
func (c *Catalog) Lookup(kind Kind, name string) (Definition, error) {
	def, ok := c.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("unknown %s workflow %q", kind, name)
	}
	if def.Kind != kind {
		return Definition{}, fmt.Errorf("workflow %q is a %s, not a %s", name, def.Kind, kind)
	}
	return def, nil
}

// Definitions returns every definition ordered by kind then name.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, 0, len(c.defs))
	for _, d := range c.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}
