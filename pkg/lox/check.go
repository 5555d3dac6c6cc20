package lox

import (
	"github.com/lemonberrylabs/loxwalk/pkg/diagnostics"
	"github.com/lemonberrylabs/loxwalk/pkg/lexer"
	"github.com/lemonberrylabs/loxwalk/pkg/parser"
	"github.com/lemonberrylabs/loxwalk/pkg/resolver"
)

// Check runs the static stages (scan, parse, resolve) without executing
// anything and returns every diagnostic they report.
func Check(source string) []*diagnostics.Diagnostic {
	c := diagnostics.NewCollector()
	tokens, lexDiags := lexer.Scan(source)
	c.Add(lexDiags...)

	stmts, parseDiags := parser.Parse(tokens)
	c.Add(parseDiags...)
	if c.HasStaticErrors() {
		return c.All()
	}

	_, resolveDiags := resolver.Resolve(stmts)
	c.Add(resolveDiags...)
	return c.All()
}
