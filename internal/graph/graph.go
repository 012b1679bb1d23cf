// Package graph renders the reference graph of a template in DOT or Mermaid.
package graph

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/emicklei/dot"

	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
	"github.com/lex00/codebuild-cfn-go/internal/template"
)

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// Generator creates reference graphs from templates.
type Generator struct {
	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format

	// ClusterByType groups resources by AWS service.
	ClusterByType bool

	// IncludePseudoParameters adds nodes for AWS::AccountId, AWS::Region
	// and other pseudo parameters the resources read.
	IncludePseudoParameters bool
}

// Generate builds the graph of t and writes it to w. Edges point from the
// referencing resource to the referenced one; Fn::GetAtt edges are blue.
func (g *Generator) Generate(t *codebuild_cfn.Template, w io.Writer) error {
	graph := g.buildGraph(t)

	var output string
	switch g.Format {
	case FormatDOT, "":
		output = graph.String()
	case FormatMermaid:
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	default:
		return fmt.Errorf("unknown graph format %q (want dot or mermaid)", g.Format)
	}

	_, err := io.WriteString(w, output)
	return err
}

// GenerateString is a convenience method that returns the graph as a string.
func (g *Generator) GenerateString(t *codebuild_cfn.Template) (string, error) {
	var sb strings.Builder
	if err := g.Generate(t, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (g *Generator) buildGraph(t *codebuild_cfn.Template) *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")

	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})
	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("fontname", "Arial")
		e.Attr("fontsize", "10")
	})

	names := t.ResourceNames()
	sort.Strings(names)

	nodes := make(map[string]dot.Node, len(names))
	if g.ClusterByType {
		g.addClusteredNodes(graph, t, names, nodes)
	} else {
		for _, name := range names {
			nodes[name] = resourceNode(graph, name, t.Resources[name].Type)
		}
	}

	for _, name := range names {
		props := t.Resources[name].Properties

		// One edge per target; GetAtt wins over Ref for styling.
		getAtt := make(map[string]bool)
		var targets []string
		for _, ref := range template.References(props) {
			if _, ok := nodes[ref.Target]; !ok {
				continue
			}
			if _, seen := getAtt[ref.Target]; !seen {
				targets = append(targets, ref.Target)
			}
			getAtt[ref.Target] = getAtt[ref.Target] || ref.IsGetAtt()
		}
		for _, dep := range t.Resources[name].DependsOn {
			if _, ok := nodes[dep]; !ok {
				continue
			}
			if _, seen := getAtt[dep]; !seen {
				targets = append(targets, dep)
				getAtt[dep] = false
			}
		}

		for _, target := range targets {
			e := graph.Edge(nodes[name], nodes[target])
			if getAtt[target] {
				e.Attr("color", "blue")
			}
		}

		if g.IncludePseudoParameters {
			for _, param := range template.PseudoParameters(props) {
				n := graph.Node(param)
				n.Attr("shape", "ellipse")
				n.Attr("style", "dashed")
				n.Label(param)
				graph.Edge(nodes[name], n).Attr("style", "dashed")
			}
		}
	}

	return graph
}

func resourceNode(g *dot.Graph, name, resourceType string) dot.Node {
	n := g.Node(name)
	n.Label(name + "\\n[" + resourceType + "]")
	return n
}

// addClusteredNodes groups resources of the same service into a cluster
// when the service has more than one resource.
func (g *Generator) addClusteredNodes(graph *dot.Graph, t *codebuild_cfn.Template, names []string, nodes map[string]dot.Node) {
	byService := make(map[string][]string)
	var services []string
	for _, name := range names {
		service := Service(t.Resources[name].Type)
		if _, ok := byService[service]; !ok {
			services = append(services, service)
		}
		byService[service] = append(byService[service], name)
	}

	for _, service := range services {
		members := byService[service]
		target := graph
		if len(members) > 1 {
			target = graph.Subgraph("cluster_"+service, dot.ClusterOption{})
			target.Attr("label", service)
			target.Attr("style", "rounded")
			target.Attr("bgcolor", "lightyellow")
		}
		for _, name := range members {
			nodes[name] = resourceNode(target, name, t.Resources[name].Type)
		}
	}
}

// Service extracts the service from a CloudFormation type.
// e.g., "AWS::CodeBuild::Project" -> "CodeBuild"
func Service(resourceType string) string {
	parts := strings.Split(resourceType, "::")
	if len(parts) == 3 {
		return parts[1]
	}
	return "Other"
}
