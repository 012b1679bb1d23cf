// Package differ provides semantic comparison of CloudFormation templates.
package differ

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
)

// Options configures the differ.
type Options struct {
	// IgnoreOrder compares lists as multisets.
	IgnoreOrder bool
}

// Result contains the difference between two templates.
type Result struct {
	Diff    codebuild_cfn.TemplateDiff
	Summary codebuild_cfn.DiffSummary
}

// Empty reports whether the templates are equivalent.
func (r *Result) Empty() bool {
	return r.Summary.Total == 0 && !r.Diff.DescriptionChanged
}

// Compare compares two CloudFormation templates and returns differences.
// Property values are compared after a JSON round trip, so a template built
// in memory compares equal to the same template loaded from disk.
func Compare(template1, template2 *codebuild_cfn.Template, opts Options) (*Result, error) {
	res1, err := normalizeResources(template1.Resources)
	if err != nil {
		return nil, err
	}
	res2, err := normalizeResources(template2.Resources)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	result.Diff.DescriptionChanged = template1.Description != template2.Description

	// Find added resources (in template2 but not in template1)
	for name, def := range res2 {
		if _, exists := res1[name]; !exists {
			result.Diff.Added = append(result.Diff.Added, codebuild_cfn.DiffEntry{
				Resource: name,
				Type:     def.Type,
			})
		}
	}

	// Find removed resources (in template1 but not in template2)
	for name, def := range res1 {
		if _, exists := res2[name]; !exists {
			result.Diff.Removed = append(result.Diff.Removed, codebuild_cfn.DiffEntry{
				Resource: name,
				Type:     def.Type,
			})
		}
	}

	for name, def1 := range res1 {
		if def2, exists := res2[name]; exists {
			changes := compareResources(def1, def2, opts)
			if len(changes) > 0 {
				result.Diff.Modified = append(result.Diff.Modified, codebuild_cfn.DiffEntry{
					Resource: name,
					Type:     def1.Type,
					Changes:  changes,
				})
			}
		}
	}

	sortEntries(result.Diff.Added)
	sortEntries(result.Diff.Removed)
	sortEntries(result.Diff.Modified)

	result.Summary = codebuild_cfn.DiffSummary{
		Added:    len(result.Diff.Added),
		Removed:  len(result.Diff.Removed),
		Modified: len(result.Diff.Modified),
	}
	result.Summary.Total = result.Summary.Added + result.Summary.Removed + result.Summary.Modified

	return result, nil
}

// CompareFiles compares two template files.
func CompareFiles(file1, file2 string, opts Options) (*Result, error) {
	t1, err := LoadTemplate(file1)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file1, err)
	}

	t2, err := LoadTemplate(file2)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file2, err)
	}

	return Compare(t1, t2, opts)
}

// LoadTemplate loads a CloudFormation template from a JSON or YAML file.
func LoadTemplate(path string) (*codebuild_cfn.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTemplate(data)
}

// ParseTemplate decodes a template, trying JSON first and then YAML.
func ParseTemplate(data []byte) (*codebuild_cfn.Template, error) {
	var template codebuild_cfn.Template

	if err := json.Unmarshal(data, &template); err != nil {
		template = codebuild_cfn.Template{}
		if err := yaml.Unmarshal(data, &template); err != nil {
			return nil, fmt.Errorf("failed to parse as JSON or YAML: %w", err)
		}
	}

	if template.Resources == nil {
		return nil, fmt.Errorf("template has no Resources section")
	}
	return &template, nil
}

func normalizeResources(resources map[string]codebuild_cfn.ResourceDef) (map[string]codebuild_cfn.ResourceDef, error) {
	out := make(map[string]codebuild_cfn.ResourceDef, len(resources))
	for name, def := range resources {
		data, err := json.Marshal(def.Properties)
		if err != nil {
			return nil, fmt.Errorf("resource %s: %w", name, err)
		}
		var props map[string]any
		if err := json.Unmarshal(data, &props); err != nil {
			return nil, fmt.Errorf("resource %s: %w", name, err)
		}
		def.Properties = props
		out[name] = def
	}
	return out, nil
}

// compareResources compares two resource definitions and returns changes.
func compareResources(def1, def2 codebuild_cfn.ResourceDef, opts Options) []string {
	var changes []string

	if def1.Type != def2.Type {
		changes = append(changes, fmt.Sprintf("Type changed: %s → %s", def1.Type, def2.Type))
	}

	changes = append(changes, compareProperties("", def1.Properties, def2.Properties, opts)...)

	if !equalStringSlices(def1.DependsOn, def2.DependsOn) {
		changes = append(changes, "DependsOn changed")
	}

	return changes
}

// compareProperties recursively compares property maps. Nested maps are
// walked so a change is reported at its deepest path.
func compareProperties(prefix string, props1, props2 map[string]any, opts Options) []string {
	var changes []string

	for key, val2 := range props2 {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		val1, exists := props1[key]
		if !exists {
			changes = append(changes, fmt.Sprintf("%s added", path))
			continue
		}

		m1, ok1 := val1.(map[string]any)
		m2, ok2 := val2.(map[string]any)
		if ok1 && ok2 && !isIntrinsic(m1) && !isIntrinsic(m2) {
			changes = append(changes, compareProperties(path, m1, m2, opts)...)
			continue
		}

		if !deepEqual(val1, val2, opts) {
			changes = append(changes, fmt.Sprintf("%s modified", path))
		}
	}

	for key := range props1 {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		if _, exists := props2[key]; !exists {
			changes = append(changes, fmt.Sprintf("%s removed", path))
		}
	}

	sort.Strings(changes)
	return changes
}

// isIntrinsic reports whether m is a single-key intrinsic function call,
// which is compared as a whole.
func isIntrinsic(m map[string]any) bool {
	if len(m) != 1 {
		return false
	}
	for k := range m {
		return k == "Ref" || strings.HasPrefix(k, "Fn::")
	}
	return false
}

// deepEqual compares two values deeply, optionally ignoring order.
func deepEqual(a, b any, opts Options) bool {
	if opts.IgnoreOrder {
		a = normalizeValue(a)
		b = normalizeValue(b)
	}
	return reflect.DeepEqual(a, b)
}

// normalizeValue sorts every list by the JSON encoding of its elements.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []any:
		result := make([]any, len(val))
		keys := make([]string, len(val))
		for i, elem := range val {
			result[i] = normalizeValue(elem)
		}
		for i, elem := range result {
			data, _ := json.Marshal(elem)
			keys[i] = string(data)
		}
		sort.Sort(byKey{values: result, keys: keys})
		return result
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v := range val {
			result[k] = normalizeValue(v)
		}
		return result
	default:
		return v
	}
}

type byKey struct {
	values []any
	keys   []string
}

func (s byKey) Len() int           { return len(s.values) }
func (s byKey) Less(i, j int) bool { return s.keys[i] < s.keys[j] }
func (s byKey) Swap(i, j int) {
	s.values[i], s.values[j] = s.values[j], s.values[i]
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
}

// equalStringSlices compares two string slices for equality.
func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sortEntries sorts diff entries by resource name.
func sortEntries(entries []codebuild_cfn.DiffEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Resource < entries[j].Resource
	})
}
