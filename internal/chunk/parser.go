package chunk

import (
	"context"
	"fmt"
	"runtime"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parser wraps tree-sitter and converts its output into a plain node tree.
type Parser struct {
	parser   *sitter.Parser
	registry *LanguageRegistry
}

// NewParser creates a parser backed by the default language registry.
func NewParser() *Parser {
	return NewParserWithRegistry(DefaultRegistry())
}

// NewParserWithRegistry creates a parser with a custom registry.
func NewParserWithRegistry(registry *LanguageRegistry) *Parser {
	return &Parser{
		parser:   sitter.NewParser(),
		registry: registry,
	}
}

// Parse parses source code into a Tree.
func (p *Parser) Parse(ctx context.Context, source []byte, language string) (*Tree, error) {
	tsLang, ok := p.registry.GetTreeSitterLanguage(language)
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}

	p.parser.SetLanguage(tsLang)

	tsTree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s source: %w", language, err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("parse %s source: nil tree", language)
	}

	return &Tree{
		Root:     convertNode(tsTree.RootNode()),
		Source:   source,
		Language: language,
	}, nil
}

// Close releases parser resources.
func (p *Parser) Close() {
	if p.parser != nil {
		p.parser.Close()
	}
}

// parserPool hands out parsers for concurrent chunking. The underlying
// tree-sitter parser mutates C state in SetLanguage and ParseCtx, so a
// parser must never be shared between goroutines. The free list is
// bounded; surplus parsers are closed instead of retained.
type parserPool struct {
	registry *LanguageRegistry
	free     chan *Parser
}

func newParserPool(registry *LanguageRegistry, size int) *parserPool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &parserPool{
		registry: registry,
		free:     make(chan *Parser, size),
	}
}

// get returns a free parser, creating one when the list is empty.
func (p *parserPool) get() *Parser {
	select {
	case parser := <-p.free:
		return parser
	default:
		return NewParserWithRegistry(p.registry)
	}
}

// put returns a parser to the free list, closing it when full.
func (p *parserPool) put(parser *Parser) {
	select {
	case p.free <- parser:
	default:
		parser.Close()
	}
}

// Close releases every pooled parser.
func (p *parserPool) Close() {
	for {
		select {
		case parser := <-p.free:
			parser.Close()
		default:
			return
		}
	}
}

// Tree is a parsed file.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node is one AST node, detached from tree-sitter's C types.
type Node struct {
	Type      string
	StartByte uint32
	EndByte   uint32
	StartRow  uint32 // 0-indexed
	EndRow    uint32
	Children  []*Node
	HasError  bool
}

func convertNode(tsNode *sitter.Node) *Node {
	if tsNode == nil {
		return nil
	}

	n := &Node{
		Type:      tsNode.Type(),
		StartByte: tsNode.StartByte(),
		EndByte:   tsNode.EndByte(),
		StartRow:  tsNode.StartPoint().Row,
		EndRow:    tsNode.EndPoint().Row,
		HasError:  tsNode.HasError(),
		Children:  make([]*Node, 0, int(tsNode.ChildCount())),
	}

	for i := uint32(0); i < tsNode.ChildCount(); i++ {
		if child := tsNode.Child(int(i)); child != nil {
			n.Children = append(n.Children, convertNode(child))
		}
	}

	return n
}

// Content returns the source span this node covers.
func (n *Node) Content(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// Walk traverses depth-first; returning false from fn skips the subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}
