package scopegrep

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/scopegrep/internal/language"
)

// FindLeafMatches walks the subtree under node in pre-order, children
// left to right, and returns every leaf (childless node) whose span text
// contains query, in source order. Containment is a plain case-sensitive
// substring test over the leaf's exact byte span.
//
// A leaf span that is not valid UTF-8 is a decode error: the walk stops
// and no matches are returned, so a file is either searched completely
// or not at all.
func FindLeafMatches(node *sitter.Node, src []byte, query string) ([]*sitter.Node, error) {
	var matches []*sitter.Node
	var walk func(n *sitter.Node) error
	walk = func(n *sitter.Node) error {
		if n.ChildCount() == 0 {
			span := src[n.StartByte():n.EndByte()]
			if !utf8.Valid(span) {
				return fmt.Errorf("leaf %q at byte %d: invalid UTF-8", n.Type(), n.StartByte())
			}
			if strings.Contains(string(span), query) {
				matches = append(matches, n)
			}
			return nil
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if err := walk(n.Child(i)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(node); err != nil {
		return nil, err
	}
	return matches, nil
}

// HierarchyOf returns the chain of nodes from the tree root down to
// node, inclusive. Index 0 is the root; the last element is node itself.
func HierarchyOf(node *sitter.Node) []*sitter.Node {
	var chain []*sitter.Node
	for n := node; n != nil; n = n.Parent() {
		chain = append(chain, n)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// NamedScope pairs a hierarchy node with its declared name.
type NamedScope struct {
	Node *sitter.Node
	Name string
}

// NamedScopes projects a root-first hierarchy down to the nodes that are
// named scopes for lang: class- or function-like kinds that expose a
// resolvable name child. Nodes whose kind matches but that declare no
// name (anonymous functions, for example) are dropped, never given a
// synthesized name.
func NamedScopes(hierarchy []*sitter.Node, src []byte, lang string) []NamedScope {
	var scopes []NamedScope
	for _, n := range hierarchy {
		if name, ok := language.ScopeName(lang, n, src); ok {
			scopes = append(scopes, NamedScope{Node: n, Name: name})
		}
	}
	return scopes
}

// ScopeChain joins the scope names root-first with "->". An empty
// projection yields an empty string.
func ScopeChain(scopes []NamedScope) string {
	names := make([]string, len(scopes))
	for i, s := range scopes {
		names[i] = s.Name
	}
	return strings.Join(names, "->")
}

// ExtractBlock returns the source text of the reportable block for a
// match: the match's ancestor whose grandparent is anchor, the innermost
// enclosing named scope. Named scopes wrap their statements in a body
// node, so stopping at the grandparent yields a statement-level node
// rather than the body wrapper. Anchor selection is deterministic: the
// same (match, anchor) pair always climbs to the same node.
//
// When the climb runs out of ancestors before reaching anchor (the
// degenerate case where anchor is the tree root itself), the outermost
// reachable node wins, which may span the entire file.
func ExtractBlock(match, anchor *sitter.Node, src []byte) string {
	candidate := match
	for {
		parent := candidate.Parent()
		if parent == nil {
			break
		}
		grandparent := parent.Parent()
		if grandparent == nil {
			break
		}
		if grandparent == anchor {
			break
		}
		candidate = parent
	}
	return string(src[candidate.StartByte():candidate.EndByte()])
}

// Marker replaces newline-plus-indentation runs when a block is
// flattened for display.
const Marker = "↩"

var lineJoin = regexp.MustCompile(`\n\s+`)

// FlattenBlock collapses a multi-line block to one display line by
// replacing every newline followed by whitespace with [Marker]. Other
// whitespace runs are left untouched.
func FlattenBlock(text string) string {
	return lineJoin.ReplaceAllString(text, Marker)
}
