package generator

import (
	"fmt"

	codebuild_cfn "github.com/lex00/codebuild-cfn-go"
	"github.com/lex00/codebuild-cfn-go/internal/template"
)

// Output formats accepted by Serialize.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Serialize renders t in the given format.
func Serialize(t *codebuild_cfn.Template, format string) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return template.ToJSON(t)
	case FormatYAML, "yml":
		return template.ToYAML(t)
	default:
		return nil, fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
