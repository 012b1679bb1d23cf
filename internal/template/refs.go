package template

import (
	"regexp"
	"sort"
	"strings"

	"github.com/lex00/codebuild-cfn-go/intrinsics"
)

// Reference is a Ref or Fn::GetAtt target found in a property value.
type Reference struct {
	// Target is the logical name referenced.
	Target string
	// Attribute is set for Fn::GetAtt and empty for Ref.
	Attribute string
}

// IsGetAtt reports whether the reference reads an attribute.
func (r Reference) IsGetAtt() bool {
	return r.Attribute != ""
}

func (r Reference) String() string {
	if r.IsGetAtt() {
		return r.Target + "." + r.Attribute
	}
	return r.Target
}

var subVariable = regexp.MustCompile(`\$\{([^}!][^}]*)\}`)

// References walks a serialized property value and returns every resource
// reference it contains, sorted and without duplicates. Pseudo parameters
// (AWS::Region and friends) are not resource references and are skipped.
func References(value any) []Reference {
	return references(value, false)
}

// PseudoParameters returns the sorted pseudo parameters (AWS::AccountId,
// AWS::Region, ...) referenced by a serialized property value.
func PseudoParameters(value any) []string {
	var names []string
	for _, ref := range references(value, true) {
		if intrinsics.IsPseudoParameter(ref.Target) {
			names = append(names, ref.Target)
		}
	}
	return names
}

func references(value any, withPseudo bool) []Reference {
	seen := make(map[Reference]bool)
	collect(value, seen, withPseudo)

	refs := make([]Reference, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Target != refs[j].Target {
			return refs[i].Target < refs[j].Target
		}
		return refs[i].Attribute < refs[j].Attribute
	})
	return refs
}

func collect(value any, seen map[Reference]bool, withPseudo bool) {
	add := func(ref Reference) {
		if ref.Target == "" {
			return
		}
		if withPseudo || !intrinsics.IsPseudoParameter(ref.Target) {
			seen[ref] = true
		}
	}

	switch v := value.(type) {
	case map[string]any:
		if len(v) == 1 {
			if target, ok := v["Ref"].(string); ok {
				add(Reference{Target: target})
				return
			}
			if getAtt, ok := v["Fn::GetAtt"]; ok {
				add(parseGetAtt(getAtt))
				return
			}
			if sub, ok := v["Fn::Sub"]; ok {
				for _, ref := range subReferences(sub) {
					add(ref)
				}
				// The variable map of the list form may hold further intrinsics.
				if list, ok := sub.([]any); ok && len(list) == 2 {
					collect(list[1], seen, withPseudo)
				}
				return
			}
		}
		for _, elem := range v {
			collect(elem, seen, withPseudo)
		}
	case []any:
		for _, elem := range v {
			collect(elem, seen, withPseudo)
		}
	}
}

func parseGetAtt(v any) Reference {
	switch args := v.(type) {
	case []any:
		if len(args) == 2 {
			target, _ := args[0].(string)
			attr, _ := args[1].(string)
			return Reference{Target: target, Attribute: attr}
		}
	case string:
		target, attr, _ := strings.Cut(args, ".")
		return Reference{Target: target, Attribute: attr}
	}
	return Reference{}
}

// subReferences extracts ${Name} and ${Name.Attr} variables from an Fn::Sub
// string. Names bound in the variable map are local and skipped.
func subReferences(v any) []Reference {
	var text string
	local := map[string]bool{}

	switch args := v.(type) {
	case string:
		text = args
	case []any:
		if len(args) == 0 {
			return nil
		}
		text, _ = args[0].(string)
		if len(args) > 1 {
			if vars, ok := args[1].(map[string]any); ok {
				for name := range vars {
					local[name] = true
				}
			}
		}
	}

	var refs []Reference
	for _, match := range subVariable.FindAllStringSubmatch(text, -1) {
		name := match[1]
		if local[name] {
			continue
		}
		target, attr, _ := strings.Cut(name, ".")
		refs = append(refs, Reference{Target: target, Attribute: attr})
	}
	return refs
}
