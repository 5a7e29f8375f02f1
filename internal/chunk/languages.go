package chunk

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageConfig describes how declarations look in one language's grammar.
type LanguageConfig struct {
	Name       string
	Extensions []string

	// DeclTypes are node types that form a top-level declaration chunk.
	DeclTypes []string

	// WrapperTypes are transparent nodes whose child is the real
	// declaration (e.g. export_statement in TS/JS).
	WrapperTypes []string

	// ImportTypes are node types of import/include statements.
	ImportTypes []string

	// CommentPrefixes mark doc-comment lines immediately above a declaration.
	CommentPrefixes []string
}

// LanguageRegistry maps languages and extensions to grammar configs.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// NewLanguageRegistry builds a registry with the built-in languages.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}
	r.registerGo()
	r.registerTypeScript()
	r.registerJavaScript()
	r.registerPython()
	return r
}

// GetByName returns the config for a language name.
func (r *LanguageRegistry) GetByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

// GetByExtension returns the config for a file extension.
func (r *LanguageRegistry) GetByExtension(ext string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	cfg, ok := r.configs[name]
	return cfg, ok
}

// GetTreeSitterLanguage returns the grammar for a language name.
func (r *LanguageRegistry) GetTreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.tsLanguages[name]
	return lang, ok
}

// SupportedExtensions lists every extension with a registered grammar.
func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	return exts
}

func (r *LanguageRegistry) registerLanguage(cfg *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg
	r.tsLanguages[cfg.Name] = tsLang
	for _, ext := range cfg.Extensions {
		r.extToLang[ext] = cfg.Name
	}
}

func (r *LanguageRegistry) registerGo() {
	cfg := &LanguageConfig{
		Name:       "go",
		Extensions: []string{".go"},
		DeclTypes: []string{
			"function_declaration",
			"method_declaration",
			"type_declaration",
		},
		ImportTypes:     []string{"import_declaration"},
		CommentPrefixes: []string{"//"},
	}
	r.registerLanguage(cfg, golang.GetLanguage())
}

func (r *LanguageRegistry) registerTypeScript() {
	tsCfg := &LanguageConfig{
		Name:       "typescript",
		Extensions: []string{".ts"},
		DeclTypes: []string{
			"function_declaration",
			"class_declaration",
			"interface_declaration",
			"type_alias_declaration",
			"enum_declaration",
			// Never a root child; listed so nested method names fold into
			// the enclosing class chunk's symbol list.
			"method_definition",
		},
		WrapperTypes:    []string{"export_statement"},
		ImportTypes:     []string{"import_statement"},
		CommentPrefixes: []string{"//", "/*", "*", "*/"},
	}
	r.registerLanguage(tsCfg, typescript.GetLanguage())

	tsxCfg := *tsCfg
	tsxCfg.Name = "tsx"
	tsxCfg.Extensions = []string{".tsx"}
	r.registerLanguage(&tsxCfg, tsx.GetLanguage())
}

func (r *LanguageRegistry) registerJavaScript() {
	jsCfg := &LanguageConfig{
		Name:       "javascript",
		Extensions: []string{".js", ".mjs", ".cjs"},
		DeclTypes: []string{
			"function_declaration",
			"class_declaration",
			"method_definition",
		},
		WrapperTypes:    []string{"export_statement"},
		ImportTypes:     []string{"import_statement"},
		CommentPrefixes: []string{"//", "/*", "*", "*/"},
	}
	r.registerLanguage(jsCfg, javascript.GetLanguage())

	jsxCfg := *jsCfg
	jsxCfg.Name = "jsx"
	jsxCfg.Extensions = []string{".jsx"}
	r.registerLanguage(&jsxCfg, javascript.GetLanguage())
}

func (r *LanguageRegistry) registerPython() {
	cfg := &LanguageConfig{
		Name:       "python",
		Extensions: []string{".py"},
		DeclTypes: []string{
			"function_definition",
			"class_definition",
		},
		WrapperTypes:    []string{"decorated_definition"},
		ImportTypes:     []string{"import_statement", "import_from_statement"},
		CommentPrefixes: []string{"#"},
	}
	r.registerLanguage(cfg, python.GetLanguage())
}

var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the shared built-in language registry.
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}
