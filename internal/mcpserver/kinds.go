package mcpserver

import (
	"strings"

	"github.com/codeprism-dev/codeprism/internal/ast"
)

// kindByName maps a client-supplied symbol-type string onto the closed
// ast.NodeKind taxonomy, generalizing the teacher's
// internal/mcp/symbol_type_resolver.go canonical-name + alias table to
// CodePrism's own NodeKind set.
var kindByName = map[string]ast.NodeKind{
	"module":      ast.KindModule,
	"package":     ast.KindPackage,
	"class":       ast.KindClass,
	"interface":   ast.KindInterface,
	"enum":        ast.KindEnum,
	"function":    ast.KindFunction,
	"func":        ast.KindFunction,
	"method":      ast.KindMethod,
	"constructor": ast.KindConstructor,
	"field":       ast.KindField,
	"parameter":   ast.KindParameter,
	"variable":    ast.KindVariable,
	"var":         ast.KindVariable,
	"import":      ast.KindImport,
	"call":        ast.KindCall,
	"literal":     ast.KindLiteral,
	"annotation":  ast.KindAnnotation,
	"route":       ast.KindRoute,
	"sql_query":   ast.KindSqlQuery,
	"event":       ast.KindEvent,
}

// parseKinds resolves a list of client-supplied symbol-type strings;
// unrecognized strings are dropped rather than rejected, since an
// overly strict allow list just for search filtering would make
// search_symbols reject a request instead of narrowing it.
func parseKinds(names []string) []ast.NodeKind {
	var out []ast.NodeKind
	for _, n := range names {
		if k, ok := kindByName[strings.ToLower(strings.TrimSpace(n))]; ok {
			out = append(out, k)
		}
	}
	return out
}
