// Package template assembles typed resources into a CloudFormation template.
package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
	"github.com/lex00/codebuild-cfn-go/internal/serialize"
)

var (
	// ErrDuplicateResource is returned when a logical name is registered twice.
	ErrDuplicateResource = errors.New("duplicate logical name")

	// ErrDanglingReference is returned when a Ref or Fn::GetAtt names a
	// resource that is not in the template.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrCycle is returned when resources reference each other in a loop.
	ErrCycle = errors.New("circular dependency detected")
)

// Builder constructs a CloudFormation template from registered resources.
type Builder struct {
	description string
	names       []string
	resources   map[string]codebuild_cfn.Resource
	outputs     map[string]codebuild_cfn.Output
}

// NewBuilder creates an empty template builder.
func NewBuilder() *Builder {
	return &Builder{
		resources: make(map[string]codebuild_cfn.Resource),
		outputs:   make(map[string]codebuild_cfn.Output),
	}
}

// SetDescription sets the template description.
func (b *Builder) SetDescription(description string) {
	b.description = description
}

// Add registers a resource under a logical name.
func (b *Builder) Add(name string, r codebuild_cfn.Resource) error {
	if name == "" {
		return errors.New("resource logical name is empty")
	}
	if r == nil {
		return fmt.Errorf("resource %s is nil", name)
	}
	if _, exists := b.resources[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateResource, name)
	}
	b.resources[name] = r
	b.names = append(b.names, name)
	return nil
}

// AddOutput registers a template output.
func (b *Builder) AddOutput(name string, out codebuild_cfn.Output) error {
	if name == "" {
		return errors.New("output name is empty")
	}
	if _, exists := b.outputs[name]; exists {
		return fmt.Errorf("%w: output %s", ErrDuplicateResource, name)
	}
	b.outputs[name] = out
	return nil
}

// Build serializes every resource, verifies that references resolve and
// that the dependency graph is acyclic, and returns the template.
func (b *Builder) Build() (*codebuild_cfn.Template, error) {
	t := &codebuild_cfn.Template{
		AWSTemplateFormatVersion: codebuild_cfn.TemplateFormatVersion,
		Description:              b.description,
		Resources:                make(map[string]codebuild_cfn.ResourceDef, len(b.resources)),
	}

	for _, name := range b.names {
		r := b.resources[name]
		props, err := serialize.Properties(r)
		if err != nil {
			return nil, fmt.Errorf("resource %s: %w", name, err)
		}
		t.Resources[name] = codebuild_cfn.ResourceDef{
			Type:       r.ResourceType(),
			Properties: props,
		}
	}

	if len(b.outputs) > 0 {
		t.Outputs = make(map[string]codebuild_cfn.Output, len(b.outputs))
		for name, out := range b.outputs {
			value, err := normalize(out.Value)
			if err != nil {
				return nil, fmt.Errorf("output %s: %w", name, err)
			}
			out.Value = value
			t.Outputs[name] = out
		}
	}

	if err := CheckReferences(t); err != nil {
		return nil, err
	}
	if _, err := Order(t); err != nil {
		return nil, err
	}

	return t, nil
}

// normalize converts intrinsic values to their generic JSON shape.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckReferences reports every Ref or Fn::GetAtt, in resources and
// outputs, whose target is not a resource in t. Pseudo parameters are
// always resolvable.
func CheckReferences(t *codebuild_cfn.Template) error {
	var errs []error

	check := func(where string, value any) {
		for _, ref := range References(value) {
			if _, ok := t.Resources[ref.Target]; !ok {
				errs = append(errs, fmt.Errorf("%w: %s references %s", ErrDanglingReference, where, ref))
			}
		}
	}

	for _, name := range sortedKeys(t.Resources) {
		check(name, t.Resources[name].Properties)
	}
	for _, name := range sortedKeys(t.Outputs) {
		check("output "+name, t.Outputs[name].Value)
	}

	return errors.Join(errs...)
}

// Dependencies maps each resource to the sorted logical names it references
// through Ref, Fn::GetAtt, Fn::Sub or DependsOn.
func Dependencies(t *codebuild_cfn.Template) map[string][]string {
	deps := make(map[string][]string, len(t.Resources))
	for name, res := range t.Resources {
		seen := make(map[string]bool)
		for _, ref := range References(res.Properties) {
			seen[ref.Target] = true
		}
		for _, dep := range res.DependsOn {
			seen[dep] = true
		}
		list := make([]string, 0, len(seen))
		for dep := range seen {
			list = append(list, dep)
		}
		sort.Strings(list)
		deps[name] = list
	}
	return deps
}

// Order returns the resources of t in dependency order: every resource
// appears after the resources it references. Ties sort by name.
func Order(t *codebuild_cfn.Template) ([]string, error) {
	deps := Dependencies(t)

	dependents := make(map[string][]string)
	inDegree := make(map[string]int, len(deps))
	for name := range deps {
		inDegree[name] += 0
		for _, dep := range deps[name] {
			if _, exists := deps[dep]; !exists {
				continue
			}
			dependents[dep] = append(dependents[dep], name)
			inDegree[name]++
		}
	}

	// Kahn's algorithm
	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, next := range dependents[node] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
				sort.Strings(queue)
			}
		}
	}

	if len(result) != len(deps) {
		return nil, detectCycle(deps)
	}
	return result, nil
}

// detectCycle finds one cycle in deps and formats it.
func detectCycle(deps map[string][]string) error {
	visited := make(map[string]bool)
	onPath := make(map[string]bool)
	var stack []string
	var cycle []string

	var visit func(node string) bool
	visit = func(node string) bool {
		visited[node] = true
		onPath[node] = true
		stack = append(stack, node)

		for _, dep := range deps[node] {
			if _, exists := deps[dep]; !exists {
				continue
			}
			if onPath[dep] {
				for i, n := range stack {
					if n == dep {
						cycle = append(append([]string{}, stack[i:]...), dep)
						break
					}
				}
				return true
			}
			if !visited[dep] && visit(dep) {
				return true
			}
		}

		onPath[node] = false
		stack = stack[:len(stack)-1]
		return false
	}

	for _, name := range sortedKeys(deps) {
		if !visited[name] && visit(name) {
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))
		}
	}
	return ErrCycle
}

// ToJSON renders the template as indented JSON. HTML characters are left
// unescaped so shell commands in the buildspec stay readable.
func ToJSON(t *codebuild_cfn.Template) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("encoding template: %w", err)
	}
	return buf.Bytes(), nil
}

// ToYAML renders the template as YAML.
func ToYAML(t *codebuild_cfn.Template) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("encoding template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding template: %w", err)
	}
	return buf.Bytes(), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
