package chunk

import (
	"regexp"
	"strings"
)

// declName extracts the declared name from a declaration node.
func declName(n *Node, source []byte, language string) string {
	switch language {
	case "go":
		return goDeclName(n, source)
	case "python":
		return firstChildContent(n, source, "identifier")
	default: // typescript, tsx, javascript, jsx
		if name := firstChildContent(n, source, "identifier"); name != "" {
			return name
		}
		// Class methods carry their name as a property_identifier.
		if name := firstChildContent(n, source, "property_identifier"); name != "" {
			return name
		}
		return firstChildContent(n, source, "type_identifier")
	}
}

func goDeclName(n *Node, source []byte) string {
	switch n.Type {
	case "function_declaration":
		return firstChildContent(n, source, "identifier")
	case "method_declaration":
		return firstChildContent(n, source, "field_identifier")
	case "type_declaration":
		for _, child := range n.Children {
			if child.Type == "type_spec" {
				if name := firstChildContent(child, source, "type_identifier"); name != "" {
					return name
				}
			}
		}
	}
	return ""
}

func firstChildContent(n *Node, source []byte, nodeType string) string {
	for _, child := range n.Children {
		if child.Type == nodeType {
			return child.Content(source)
		}
	}
	return ""
}

var (
	jsImportFromRe  = regexp.MustCompile(`from\s+["']([^"']+)["']`)
	jsImportBareRe  = regexp.MustCompile(`^import\s+["']([^"']+)["']`)
	jsRequireRe     = regexp.MustCompile(`require\(\s*["']([^"']+)["']\s*\)`)
	pyImportRe      = regexp.MustCompile(`^import\s+([\w.]+)`)
	pyFromImportRe  = regexp.MustCompile(`^from\s+([\w.]+)\s+import`)
	goImportPathRe  = regexp.MustCompile(`"([^"]+)"`)
	goSymbolRe      = regexp.MustCompile(`^func\s+(?:\([^)]*\)\s+)?([A-Za-z_][A-Za-z0-9_]*)`)
	goTypeSymbolRe  = regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)`)
	pySymbolRe      = regexp.MustCompile(`^(?:async\s+)?(?:def|class)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	jsSymbolRe      = regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?(?:async\s+)?(?:function|class|interface|type|enum)\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	jsBindingRe     = regexp.MustCompile(`^export\s+(?:const|let|var)\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
)

// ScanImports extracts import targets from chunk content with line-level
// pattern matching. Used where no parse tree is available (fixed windows)
// and for the file-level preamble chunk.
func ScanImports(language, content string) []string {
	var imports []string
	inGoBlock := false

	for _, line := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(line)

		switch language {
		case "go":
			switch {
			case strings.HasPrefix(stripped, "import ("):
				inGoBlock = true
			case inGoBlock && stripped == ")":
				inGoBlock = false
			case inGoBlock || strings.HasPrefix(stripped, "import "):
				if m := goImportPathRe.FindStringSubmatch(stripped); m != nil {
					imports = append(imports, m[1])
				}
			}
		case "python":
			if m := pyFromImportRe.FindStringSubmatch(stripped); m != nil {
				imports = append(imports, m[1])
			} else if m := pyImportRe.FindStringSubmatch(stripped); m != nil {
				imports = append(imports, m[1])
			}
		default: // typescript, tsx, javascript, jsx
			if m := jsImportFromRe.FindStringSubmatch(stripped); m != nil {
				imports = append(imports, m[1])
			} else if m := jsImportBareRe.FindStringSubmatch(stripped); m != nil {
				imports = append(imports, m[1])
			} else if m := jsRequireRe.FindStringSubmatch(stripped); m != nil {
				imports = append(imports, m[1])
			}
		}
	}

	return imports
}

// ScanSymbols extracts declared names from chunk content with line-level
// pattern matching. This is the degraded path for fixed windows where no
// parse tree exists; AST chunks carry parser-extracted symbols instead.
func ScanSymbols(language, content string) []string {
	var symbols []string
	seen := make(map[string]struct{})

	add := func(name string) {
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		symbols = append(symbols, name)
	}

	for _, line := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(line)

		switch language {
		case "go":
			if m := goSymbolRe.FindStringSubmatch(stripped); m != nil {
				add(m[1])
			} else if m := goTypeSymbolRe.FindStringSubmatch(stripped); m != nil {
				add(m[1])
			}
		case "python":
			if m := pySymbolRe.FindStringSubmatch(stripped); m != nil {
				add(m[1])
			}
		default: // typescript, tsx, javascript, jsx
			if m := jsSymbolRe.FindStringSubmatch(stripped); m != nil {
				add(m[1])
			} else if m := jsBindingRe.FindStringSubmatch(stripped); m != nil {
				add(m[1])
			}
		}
	}

	return symbols
}
