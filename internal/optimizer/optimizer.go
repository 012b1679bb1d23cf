// Package optimizer provides CloudFormation optimization suggestions.
// It analyzes the CodeBuild project and its role for security, cost,
// performance and reliability improvements. Suggestions never fail a build.
package optimizer

import (
	"fmt"
	"sort"

	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
)

// Categories lists the valid suggestion categories.
var Categories = []string{"security", "cost", "performance", "reliability"}

// Options configures the optimizer.
type Options struct {
	// Category filters suggestions: "all" (or empty), "security", "cost",
	// "performance", "reliability".
	Category string
}

// Result contains optimization suggestions.
type Result struct {
	Suggestions []codebuild_cfn.OptimizeSuggestion
	Summary     codebuild_cfn.OptimizeSummary
}

// Optimize analyzes every resource of t and returns optimization suggestions
// sorted by resource and rule.
func Optimize(t *codebuild_cfn.Template, opts Options) (*Result, error) {
	if !validCategory(opts.Category) {
		return nil, fmt.Errorf("invalid category: %s (valid: all, security, cost, performance, reliability)", opts.Category)
	}

	result := &Result{}
	for name, res := range t.Resources {
		result.Suggestions = append(result.Suggestions, analyzeResource(name, res, opts.Category)...)
	}

	sort.Slice(result.Suggestions, func(i, j int) bool {
		a, b := result.Suggestions[i], result.Suggestions[j]
		if a.Resource != b.Resource {
			return a.Resource < b.Resource
		}
		return a.Rule < b.Rule
	})

	result.Summary = calculateSummary(result.Suggestions)
	return result, nil
}

func validCategory(category string) bool {
	if category == "" || category == "all" {
		return true
	}
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// analyzeResource applies optimization rules to a single resource.
func analyzeResource(name string, res codebuild_cfn.ResourceDef, category string) []codebuild_cfn.OptimizeSuggestion {
	var suggestions []codebuild_cfn.OptimizeSuggestion

	for _, rule := range getRulesForType(res.Type) {
		if category != "" && category != "all" && rule.Category != category {
			continue
		}
		if suggestion := rule.Check(res); suggestion != nil {
			suggestion.Rule = rule.ID
			suggestion.Resource = name
			suggestion.Category = rule.Category
			if suggestion.Title == "" {
				suggestion.Title = rule.Title
			}
			suggestions = append(suggestions, *suggestion)
		}
	}

	return suggestions
}

// calculateSummary tallies suggestions by category.
func calculateSummary(suggestions []codebuild_cfn.OptimizeSuggestion) codebuild_cfn.OptimizeSummary {
	summary := codebuild_cfn.OptimizeSummary{}
	for _, s := range suggestions {
		switch s.Category {
		case "security":
			summary.Security++
		case "cost":
			summary.Cost++
		case "performance":
			summary.Performance++
		case "reliability":
			summary.Reliability++
		}
		summary.Total++
	}
	return summary
}

// Rule represents an optimization rule. Check returns nil when the resource
// needs no change; the optimizer fills in Rule, Resource and Category.
type Rule struct {
	ID          string
	Category    string
	Title       string
	Description string
	Check       func(res codebuild_cfn.ResourceDef) *codebuild_cfn.OptimizeSuggestion
}

// getRulesForType returns applicable rules for a resource type.
func getRulesForType(resourceType string) []Rule {
	switch resourceType {
	case "AWS::CodeBuild::Project":
		return projectRules
	case "AWS::IAM::Role":
		return roleRules
	}
	return nil
}

// AllRules returns every rule, for listing.
func AllRules() []Rule {
	rules := make([]Rule, 0, len(projectRules)+len(roleRules))
	rules = append(rules, projectRules...)
	return append(rules, roleRules...)
}
