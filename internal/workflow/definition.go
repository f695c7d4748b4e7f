// Package workflow loads declarative router and pipeline definitions from
// YAML and builds runnable dispatchers and pipelines from them.
package workflow

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type Kind string

const (
	KindRouter   Kind = "router"
	KindPipeline Kind = "pipeline"
)

// SchemaReview marks a stage whose output must be a review judgment.
const SchemaReview = "review"

type Definition struct {
	Kind        Kind   `yaml:"kind"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Router fields.
	Instruction string     `yaml:"instruction,omitempty"`
	Fallback    string     `yaml:"fallback,omitempty"`
	Routes      []RouteDef `yaml:"routes,omitempty"`

	// Pipeline fields.
	Stages []StageDef `yaml:"stages,omitempty"`

	// Source is the file the definition was read from.
	Source string `yaml:"-"`
}

// RouteDef binds a label either to a reply template, where {request} is
// replaced by the request text, or to a named handler: one supplied at build
// time or a standard coordinator handler (booker, info, unclear).
type RouteDef struct {
	Label   string `yaml:"label"`
	Reply   string `yaml:"reply,omitempty"`
	Handler string `yaml:"handler,omitempty"`
}

type StageDef struct {
	Name        string   `yaml:"name"`
	Instruction string   `yaml:"instruction"`
	Reads       []string `yaml:"reads,omitempty"`
	OutputKey   string   `yaml:"output_key"`
	Schema      string   `yaml:"schema,omitempty"`
}

// Parse decodes a single definition document. Unknown fields and multiple
// documents are rejected.
func Parse(data []byte, source string) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("%s: %w", source, err)
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return Definition{}, fmt.Errorf("%s: yaml: multiple documents are not allowed", source)
		}
		return Definition{}, fmt.Errorf("%s: %w", source, err)
	}
	def.Source = source
	if err := def.Validate(); err != nil {
		return Definition{}, fmt.Errorf("%s: %w", source, err)
	}
	return def, nil
}

func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("name is required")
	}
	switch d.Kind {
	case KindRouter:
		return d.validateRouter()
	case KindPipeline:
		return d.validatePipeline()
	default:
		return fmt.Errorf("workflow %q: unknown kind %q (want %q or %q)", d.Name, d.Kind, KindRouter, KindPipeline)
	}
}

func (d Definition) validateRouter() error {
	if len(d.Stages) > 0 {
		return fmt.Errorf("router %q: stages are not allowed", d.Name)
	}
	if strings.TrimSpace(d.Instruction) == "" {
		return fmt.Errorf("router %q: instruction is required", d.Name)
	}
	if len(d.Routes) == 0 {
		return fmt.Errorf("router %q: at least one route is required", d.Name)
	}
	seen := map[string]bool{}
	fallbackFound := false
	for i, r := range d.Routes {
		label := strings.TrimSpace(r.Label)
		if label == "" {
			return fmt.Errorf("router %q: routes[%d]: label is required", d.Name, i)
		}
		key := strings.ToLower(label)
		if seen[key] {
			return fmt.Errorf("router %q: duplicate label %q", d.Name, label)
		}
		seen[key] = true
		if (r.Reply == "") == (r.Handler == "") {
			return fmt.Errorf("router %q: route %q must set exactly one of reply or handler", d.Name, label)
		}
		if strings.EqualFold(label, strings.TrimSpace(d.Fallback)) {
			fallbackFound = true
		}
	}
	if strings.TrimSpace(d.Fallback) == "" {
		return fmt.Errorf("router %q: fallback is required", d.Name)
	}
	if !fallbackFound {
		return fmt.Errorf("router %q: fallback %q is not a declared route", d.Name, d.Fallback)
	}
	return nil
}

func (d Definition) validatePipeline() error {
	if len(d.Routes) > 0 || d.Fallback != "" || d.Instruction != "" {
		return fmt.Errorf("pipeline %q: router fields are not allowed", d.Name)
	}
	if len(d.Stages) == 0 {
		return fmt.Errorf("pipeline %q: at least one stage is required", d.Name)
	}
	written := map[string]bool{}
	names := map[string]bool{}
	for i, s := range d.Stages {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("pipeline %q: stages[%d]: name is required", d.Name, i)
		}
		if names[s.Name] {
			return fmt.Errorf("pipeline %q: duplicate stage name %q", d.Name, s.Name)
		}
		names[s.Name] = true
		if strings.TrimSpace(s.Instruction) == "" {
			return fmt.Errorf("pipeline %q: stage %q: instruction is required", d.Name, s.Name)
		}
		if strings.TrimSpace(s.OutputKey) == "" {
			return fmt.Errorf("pipeline %q: stage %q: output_key is required", d.Name, s.Name)
		}
		for _, r := range s.Reads {
			if !written[r] {
				return fmt.Errorf("pipeline %q: stage %q reads %q before any stage writes it", d.Name, s.Name, r)
			}
		}
		if written[s.OutputKey] {
			return fmt.Errorf("pipeline %q: output_key %q written by more than one stage", d.Name, s.OutputKey)
		}
		written[s.OutputKey] = true
		switch s.Schema {
		case "", SchemaReview:
		default:
			return fmt.Errorf("pipeline %q: stage %q: unknown schema %q", d.Name, s.Name, s.Schema)
		}
	}
	return nil
}
