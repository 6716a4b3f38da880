// Package language owns the tree-sitter grammar registry: which
// languages scopegrep understands, which file extensions map to them,
// and which node kinds count as named scopes for each grammar.
package language

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ScopeKind classifies a node kind within the closed set of named-scope
// constructs the search reports on. Anything not class- or
// function-like is ScopeNone.
type ScopeKind int

const (
	ScopeNone ScopeKind = iota
	ScopeClass
	ScopeFunction
)

// extToLanguage maps file extensions to canonical language names.
var extToLanguage = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".rs":   "rust",
	".java": "java",
	".rb":   "ruby",
}

// langToGrammar maps language names to tree-sitter Language objects.
// Lazily initialized on first call via sync.Once.
var (
	langToGrammar map[string]*sitter.Language
	grammarsOnce  sync.Once
)

func initGrammars() {
	grammarsOnce.Do(func() {
		langToGrammar = map[string]*sitter.Language{
			"go":         golang.GetLanguage(),
			"python":     python.GetLanguage(),
			"javascript": javascript.GetLanguage(),
			"typescript": ts.GetLanguage(),
			"rust":       rust.GetLanguage(),
			"java":       java.GetLanguage(),
			"ruby":       ruby.GetLanguage(),
		}
	})
}

// scopeKinds is the per-language closed set of named-scope node kinds.
// Kinds listed here are the only ones the scope namer will ever keep;
// whether a given node actually contributes a scope still depends on it
// declaring a name (see ScopeName).
var scopeKinds = map[string]map[string]ScopeKind{
	"go": {
		"function_declaration": ScopeFunction,
		"method_declaration":   ScopeFunction,
		"func_literal":         ScopeFunction, // anonymous: kept in the set, dropped by name resolution
	},
	"python": {
		"class_definition":    ScopeClass,
		"function_definition": ScopeFunction,
	},
	"javascript": {
		"class_declaration":              ScopeClass,
		"function_declaration":           ScopeFunction,
		"generator_function_declaration": ScopeFunction,
		"method_definition":              ScopeFunction,
	},
	"typescript": {
		"class_declaration":          ScopeClass,
		"abstract_class_declaration": ScopeClass,
		"interface_declaration":      ScopeClass,
		"function_declaration":       ScopeFunction,
		"method_definition":          ScopeFunction,
	},
	"rust": {
		"struct_item":   ScopeClass,
		"enum_item":     ScopeClass,
		"trait_item":    ScopeClass,
		"mod_item":      ScopeClass,
		"function_item": ScopeFunction,
	},
	"java": {
		"class_declaration":       ScopeClass,
		"interface_declaration":   ScopeClass,
		"enum_declaration":        ScopeClass,
		"method_declaration":      ScopeFunction,
		"constructor_declaration": ScopeFunction,
	},
	"ruby": {
		"class":            ScopeClass,
		"module":           ScopeClass,
		"method":           ScopeFunction,
		"singleton_method": ScopeFunction,
	},
}

// ForFile returns the canonical language name for a file path based on
// its extension. Returns ("", false) if the extension is not recognized.
func ForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extToLanguage[ext]
	return lang, ok
}

// Grammar returns the tree-sitter Language for a canonical language
// name. Returns (nil, false) if the language is not supported.
func Grammar(lang string) (*sitter.Language, bool) {
	initGrammars()
	l, ok := langToGrammar[lang]
	return l, ok
}

// Supported returns true if lang is a known language name.
func Supported(lang string) bool {
	_, ok := scopeKinds[lang]
	return ok
}

// ScopeKindFor classifies a node kind for lang against the closed
// scope-kind set. Unknown languages and kinds are ScopeNone.
func ScopeKindFor(lang, kind string) ScopeKind {
	kinds, ok := scopeKinds[lang]
	if !ok {
		return ScopeNone
	}
	return kinds[kind]
}

// ScopeName resolves the declared name of node when its kind is a named
// scope for lang. The name comes from the grammar's "name" field child;
// a scope-kind node without one (an anonymous function, a syntax-error
// fragment) resolves to ("", false) and is excluded from scope chains.
func ScopeName(lang string, node *sitter.Node, src []byte) (string, bool) {
	if ScopeKindFor(lang, node.Type()) == ScopeNone {
		return "", false
	}
	name := node.ChildByFieldName("name")
	if name == nil {
		return "", false
	}
	return name.Content(src), true
}
