// Package buildspec models the CodeBuild build specification document.
//
// A BuildSpec is assembled as typed data and flattened to YAML only when it
// is embedded in a project's Source:
//
//	spec := buildspec.BuildSpec{
//	    Version: buildspec.Version02,
//	    Phases: buildspec.Phases{
//	        Build: buildspec.Commands("docker build -t app ."),
//	    },
//	    Artifacts: &buildspec.Artifacts{
//	        Files:        buildspec.Files{"/tmp/build.json"},
//	        DiscardPaths: true,
//	    },
//	}
//	text, err := spec.Render()
package buildspec

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Version02 is the buildspec version supported by current CodeBuild images.
const Version02 Version = "0.2"

// ErrNoPhases is returned by Validate when a buildspec runs no commands.
var ErrNoPhases = errors.New("buildspec has no phases with commands")

// BuildSpec is a CodeBuild build specification.
type BuildSpec struct {
	Version   Version    `yaml:"version"`
	Phases    Phases     `yaml:"phases"`
	Artifacts *Artifacts `yaml:"artifacts,omitempty"`
}

// Phases holds the build phases in execution order.
type Phases struct {
	Install   *Phase `yaml:"install,omitempty"`
	PreBuild  *Phase `yaml:"pre_build,omitempty"`
	Build     *Phase `yaml:"build,omitempty"`
	PostBuild *Phase `yaml:"post_build,omitempty"`
}

// Phase is an ordered list of shell commands.
type Phase struct {
	Commands []string `yaml:"commands"`
}

// NamedPhase pairs a phase with its buildspec key.
type NamedPhase struct {
	Name  string
	Phase *Phase
}

// Ordered returns the non-empty phases in execution order.
func (p Phases) Ordered() []NamedPhase {
	all := []NamedPhase{
		{"install", p.Install},
		{"pre_build", p.PreBuild},
		{"build", p.Build},
		{"post_build", p.PostBuild},
	}
	var out []NamedPhase
	for _, np := range all {
		if np.Phase != nil && len(np.Phase.Commands) > 0 {
			out = append(out, np)
		}
	}
	return out
}

// Commands returns a phase running the given commands.
func Commands(cmds ...string) *Phase {
	return &Phase{Commands: cmds}
}

// Artifacts selects the files CodeBuild uploads after the build.
type Artifacts struct {
	Files        Files `yaml:"files"`
	DiscardPaths YesNo `yaml:"discard-paths,omitempty"`
}

// Version is the buildspec version string, emitted unquoted.
type Version string

// MarshalYAML emits the version as a plain scalar (version: 0.2).
func (v Version) MarshalYAML() (any, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: string(v)}, nil
}

// UnmarshalYAML keeps the literal scalar text so 0.2 is not read as a float.
func (v *Version) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: version must be a scalar", node.Line)
	}
	*v = Version(node.Value)
	return nil
}

// YesNo is a buildspec boolean written as yes or no.
type YesNo bool

// MarshalYAML emits yes or no as a plain scalar.
func (b YesNo) MarshalYAML() (any, error) {
	value := "no"
	if b {
		value = "yes"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Value: value}, nil
}

// UnmarshalYAML accepts yes, no, true and false.
func (b *YesNo) UnmarshalYAML(node *yaml.Node) error {
	switch strings.ToLower(node.Value) {
	case "yes", "true", "on":
		*b = true
	case "no", "false", "off":
		*b = false
	default:
		return fmt.Errorf("line %d: invalid boolean %q", node.Line, node.Value)
	}
	return nil
}

// Files lists artifact paths. A single path is written as a scalar.
type Files []string

// MarshalYAML emits a scalar for one file and a sequence otherwise.
func (f Files) MarshalYAML() (any, error) {
	if len(f) == 1 {
		return f[0], nil
	}
	return []string(f), nil
}

// UnmarshalYAML accepts either a scalar or a sequence of paths.
func (f *Files) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*f = Files{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*f = list
		return nil
	default:
		return fmt.Errorf("line %d: files must be a path or a list of paths", node.Line)
	}
}

// Validate checks the structural requirements CodeBuild enforces.
func (b BuildSpec) Validate() error {
	var errs []error
	if b.Version == "" {
		errs = append(errs, errors.New("buildspec version is required"))
	}
	if len(b.Phases.Ordered()) == 0 {
		errs = append(errs, ErrNoPhases)
	}
	if b.Artifacts != nil && len(b.Artifacts.Files) == 0 {
		errs = append(errs, errors.New("buildspec artifacts must name at least one file"))
	}
	return errors.Join(errs...)
}

// AllCommands returns every command across all phases in execution order.
func (b BuildSpec) AllCommands() []string {
	var cmds []string
	for _, np := range b.Phases.Ordered() {
		cmds = append(cmds, np.Phase.Commands...)
	}
	return cmds
}

// Render encodes the buildspec as YAML with two-space indentation.
func (b BuildSpec) Render() (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(b); err != nil {
		return "", fmt.Errorf("encoding buildspec: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding buildspec: %w", err)
	}
	return buf.String(), nil
}

// Parse decodes a YAML buildspec document.
func Parse(text string) (*BuildSpec, error) {
	var spec BuildSpec
	if err := yaml.Unmarshal([]byte(text), &spec); err != nil {
		return nil, fmt.Errorf("parsing buildspec: %w", err)
	}
	return &spec, nil
}
