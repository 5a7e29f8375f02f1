package chunk

// ParseState is the explicit outcome of structural analysis. The chunker
// branches on it instead of recovering from parse panics or errors.
type ParseState int

const (
	// ParseStateParsed means declarations were extracted and AST chunking
	// can proceed.
	ParseStateParsed ParseState = iota

	// ParseStateUnparseable means the grammar rejected the file or no
	// declarations were found; the caller must fall back to fixed windows.
	ParseStateUnparseable
)

// Declaration is one top-level declaration boundary in a source file.
// Nested declarations are not independent boundaries; their names are
// folded into the enclosing declaration.
type Declaration struct {
	Name      string
	Kind      string // function, method, class, interface, type
	StartLine int    // 1-indexed, first line of the declaration itself
	EndLine   int    // Inclusive
	Nested    []string
}

// ParseOutcome is the result of structural analysis of one file.
type ParseOutcome struct {
	State        ParseState
	Declarations []Declaration
}

// Analyze extracts top-level declaration boundaries from a parsed tree.
// Only direct children of the file root (transparently unwrapping export
// statements and decorators) count as boundaries.
func Analyze(tree *Tree, cfg *LanguageConfig) ParseOutcome {
	if tree == nil || tree.Root == nil || tree.Root.HasError {
		return ParseOutcome{State: ParseStateUnparseable}
	}

	declTypes := make(map[string]struct{}, len(cfg.DeclTypes))
	for _, t := range cfg.DeclTypes {
		declTypes[t] = struct{}{}
	}
	wrapperTypes := make(map[string]struct{}, len(cfg.WrapperTypes))
	for _, t := range cfg.WrapperTypes {
		wrapperTypes[t] = struct{}{}
	}

	var decls []Declaration
	for _, child := range tree.Root.Children {
		outer := child
		inner := unwrap(child, declTypes, wrapperTypes)
		if _, ok := declTypes[inner.Type]; !ok {
			continue
		}

		name := declName(inner, tree.Source, tree.Language)
		if name == "" {
			continue
		}

		decls = append(decls, Declaration{
			Name:      name,
			Kind:      declKind(inner.Type),
			StartLine: int(outer.StartRow) + 1,
			EndLine:   int(outer.EndRow) + 1,
			Nested:    nestedDeclNames(inner, tree.Source, declTypes, wrapperTypes, tree.Language),
		})
	}

	if len(decls) == 0 {
		return ParseOutcome{State: ParseStateUnparseable}
	}

	return ParseOutcome{State: ParseStateParsed, Declarations: decls}
}

// unwrap descends through transparent wrapper nodes (export statements,
// decorated definitions) to the declaration they carry.
func unwrap(n *Node, declTypes, wrapperTypes map[string]struct{}) *Node {
	for {
		if _, ok := wrapperTypes[n.Type]; !ok {
			return n
		}
		var next *Node
		for _, child := range n.Children {
			if _, ok := declTypes[child.Type]; ok {
				next = child
				break
			}
			if _, ok := wrapperTypes[child.Type]; ok {
				next = child
				break
			}
		}
		if next == nil {
			return n
		}
		n = next
	}
}

// nestedDeclNames collects names of declarations nested inside decl,
// excluding decl itself.
func nestedDeclNames(decl *Node, source []byte, declTypes, wrapperTypes map[string]struct{}, language string) []string {
	var names []string
	seen := make(map[string]struct{})

	var visit func(n *Node)
	visit = func(n *Node) {
		for _, child := range n.Children {
			inner := unwrap(child, declTypes, wrapperTypes)
			if _, ok := declTypes[inner.Type]; ok {
				if name := declName(inner, source, language); name != "" {
					if _, dup := seen[name]; !dup {
						seen[name] = struct{}{}
						names = append(names, name)
					}
				}
			}
			visit(child)
		}
	}
	visit(decl)

	return names
}

func declKind(nodeType string) string {
	switch nodeType {
	case "function_declaration", "function_definition":
		return "function"
	case "method_declaration", "method_definition":
		return "method"
	case "class_declaration", "class_definition":
		return "class"
	case "interface_declaration":
		return "interface"
	default:
		return "type"
	}
}
