package evidence

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

const outlineQuery = `
	(function_declaration name: (identifier) @name) @decl
	(method_declaration name: (field_identifier) @name) @decl
	(type_spec name: (type_identifier) @name) @decl
`

// Outline summarizes a Go source file into declaration-level lines
// ("function Foo (lines 10-24)"). A file that fails to parse just yields no
// outline; callers fall back to a raw excerpt.
func Outline(source []byte) []string {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil
	}

	query, err := sitter.NewQuery([]byte(outlineQuery), golang.GetLanguage())
	if err != nil {
		return nil
	}
	cursor := sitter.NewQueryCursor()
	cursor.Exec(query, tree.RootNode())

	var out []string
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		var decl *sitter.Node
		name := ""
		for _, capture := range match.Captures {
			switch query.CaptureNameForId(capture.Index) {
			case "decl":
				decl = capture.Node
			case "name":
				name = capture.Node.Content(source)
			}
		}
		if decl == nil || name == "" {
			continue
		}
		out = append(out, fmt.Sprintf("%s %s (lines %d-%d)",
			declKind(decl.Type()), name, decl.StartPoint().Row+1, decl.EndPoint().Row+1))
	}
	return out
}

func declKind(nodeType string) string {
	switch nodeType {
	case "function_declaration":
		return "function"
	case "method_declaration":
		return "method"
	case "type_spec":
		return "type"
	}
	return nodeType
}
