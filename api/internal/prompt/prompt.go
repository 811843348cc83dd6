// Package prompt holds the oracle instructions and output schemas for every
// pipeline stage. The catalog is embedded; PROMPT_DIR can override entries
// without a rebuild.
package prompt

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"algo-viz/api/internal/llm"
)

// Stage names as they appear in catalog.yaml.
const (
	Classify     = "classify"
	Pseudocode   = "pseudocode"
	CNNParam     = "cnn_param"
	SortingTrace = "sorting_trace"
	SeqAttention = "seq_attention"
	Animation    = "animation"
	Codegen      = "codegen"
)

//go:embed catalog.yaml schemas/*.schema.json
var embedded embed.FS

type Entry struct {
	System      string  `yaml:"system"`
	User        string  `yaml:"user"`
	Schema      string  `yaml:"schema"`
	JSON        bool    `yaml:"json"`
	Temperature float32 `yaml:"temperature"`
}

// Data is what prompt templates may reference.
type Data struct {
	Text   string
	Domain string
	Hint   string
	IR     string
	Scene  string
}

type compiled struct {
	entry  Entry
	system *template.Template
	user   *template.Template
}

type Catalog struct {
	entries map[string]compiled
	schemas map[string][]byte
}

var ErrUnknownPrompt = errors.New("unknown prompt")

// Load reads the embedded catalog and, when dir is not empty, layers
// dir/catalog.yaml and dir/schemas/*.schema.json on top of it.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{entries: map[string]compiled{}, schemas: map[string][]byte{}}
	if err := c.merge(embedded); err != nil {
		return nil, fmt.Errorf("prompt: embedded catalog: %w", err)
	}
	if strings.TrimSpace(dir) != "" {
		if err := c.merge(os.DirFS(dir)); err != nil {
			return nil, fmt.Errorf("prompt: %s: %w", dir, err)
		}
	}
	for name, e := range c.entries {
		if e.entry.Schema == "" {
			continue
		}
		if _, ok := c.schemas[e.entry.Schema]; !ok {
			return nil, fmt.Errorf("prompt %s: schema %q not found", name, e.entry.Schema)
		}
	}
	return c, nil
}

// MustLoad is Load for the embedded catalog only.
func MustLoad() *Catalog {
	c, err := Load("")
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) merge(fsys fs.FS) error {
	raw, err := fs.ReadFile(fsys, "catalog.yaml")
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return err
	default:
		var entries map[string]Entry
		if err := yaml.Unmarshal(raw, &entries); err != nil {
			return fmt.Errorf("catalog.yaml: %w", err)
		}
		for name, e := range entries {
			sys, err := template.New(name + ".system").Option("missingkey=error").Parse(e.System)
			if err != nil {
				return fmt.Errorf("%s.system: %w", name, err)
			}
			usr, err := template.New(name + ".user").Option("missingkey=error").Parse(e.User)
			if err != nil {
				return fmt.Errorf("%s.user: %w", name, err)
			}
			c.entries[name] = compiled{entry: e, system: sys, user: usr}
		}
	}

	files, err := fs.Glob(fsys, "schemas/*.schema.json")
	if err != nil {
		return err
	}
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return err
		}
		if !json.Valid(b) {
			return fmt.Errorf("%s: invalid JSON", f)
		}
		c.schemas[strings.TrimSuffix(path.Base(f), ".schema.json")] = b
	}
	return nil
}

func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Schema returns a freshly decoded copy; callers may mutate it.
func (c *Catalog) Schema(name string) (map[string]any, error) {
	b, ok := c.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w schema %q", ErrUnknownPrompt, name)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return m, nil
}

// Build renders the named entry into an oracle request.
func (c *Catalog) Build(name string, data Data) (llm.Request, error) {
	e, ok := c.entries[name]
	if !ok {
		return llm.Request{}, fmt.Errorf("%w %q", ErrUnknownPrompt, name)
	}
	var sys, usr bytes.Buffer
	if err := e.system.Execute(&sys, data); err != nil {
		return llm.Request{}, fmt.Errorf("prompt %s: %w", name, err)
	}
	if err := e.user.Execute(&usr, data); err != nil {
		return llm.Request{}, fmt.Errorf("prompt %s: %w", name, err)
	}
	req := llm.Request{
		Op:          name,
		System:      strings.TrimSpace(sys.String()),
		User:        strings.TrimSpace(usr.String()),
		JSON:        e.entry.JSON,
		Temperature: e.entry.Temperature,
	}
	if e.entry.Schema != "" {
		schema, err := c.Schema(e.entry.Schema)
		if err != nil {
			return llm.Request{}, err
		}
		req.Schema = schema
		req.JSON = true
	}
	return req, nil
}
