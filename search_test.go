package scopegrep

import (
	"context"
	"strings"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/scopegrep/internal/language"
)

func parseSource(t *testing.T, lang string, src []byte) *sitter.Tree {
	t.Helper()
	grammar, ok := language.Grammar(lang)
	require.True(t, ok, "grammar for %s", lang)
	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	require.NoError(t, err)
	return tree
}

func TestFindLeafMatches_LeavesOnlyInSourceOrder(t *testing.T) {
	src := []byte("def f():\n    x = 1\n    return x\n")
	tree := parseSource(t, "python", src)

	matches, err := FindLeafMatches(tree.RootNode(), src, "x")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	for _, m := range matches {
		assert.Zero(t, m.ChildCount(), "matches must be leaves")
		assert.Contains(t, string(src[m.StartByte():m.EndByte()]), "x")
	}
	// Pre-order walk preserves source order.
	assert.Less(t, matches[0].StartByte(), matches[1].StartByte())
}

func TestFindLeafMatches_NoMatch(t *testing.T) {
	src := []byte("def f():\n    return 1\n")
	tree := parseSource(t, "python", src)

	matches, err := FindLeafMatches(tree.RootNode(), src, "nowhere")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindLeafMatches_CaseSensitive(t *testing.T) {
	src := []byte("Value = 1\n")
	tree := parseSource(t, "python", src)

	matches, err := FindLeafMatches(tree.RootNode(), src, "value")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindLeafMatches_InvalidUTF8(t *testing.T) {
	src := []byte("# bad bytes \xff\xfe\nx = 1\n")
	tree := parseSource(t, "python", src)

	_, err := FindLeafMatches(tree.RootNode(), src, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid UTF-8")
}

func TestHierarchyOf_RootFirstEndsAtNode(t *testing.T) {
	src := []byte("def f():\n    x = 1\n")
	tree := parseSource(t, "python", src)
	root := tree.RootNode()

	matches, err := FindLeafMatches(root, src, "x")
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	leaf := matches[0]

	chain := HierarchyOf(leaf)
	require.NotEmpty(t, chain)
	assert.Equal(t, root, chain[0])
	assert.Equal(t, leaf, chain[len(chain)-1])

	depth := 0
	for n := leaf; n.Parent() != nil; n = n.Parent() {
		depth++
	}
	assert.Len(t, chain, depth+1)
}

func TestNamedScopes_ClassAndFunction(t *testing.T) {
	src := []byte("class C:\n    def m(self):\n        call(target)\n")
	tree := parseSource(t, "python", src)

	matches, err := FindLeafMatches(tree.RootNode(), src, "target")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	scopes := NamedScopes(HierarchyOf(matches[0]), src, "python")
	require.Len(t, scopes, 2)
	assert.Equal(t, "C", scopes[0].Name)
	assert.Equal(t, "m", scopes[1].Name)
	assert.Equal(t, "C->m", ScopeChain(scopes))
}

func TestNamedScopes_DropsAnonymousFunctions(t *testing.T) {
	// A Go func literal is function-like but declares no name, so it is
	// in the scope-kind set yet excluded from the projection.
	src := []byte("package main\n\nfunc main() {\n\tf := func() {\n\t\tcall(target)\n\t}\n\t_ = f\n}\n")
	tree := parseSource(t, "go", src)

	matches, err := FindLeafMatches(tree.RootNode(), src, "target")
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	hierarchy := HierarchyOf(matches[0])
	sawLiteral := false
	for _, n := range hierarchy {
		if n.Type() == "func_literal" {
			sawLiteral = true
		}
	}
	require.True(t, sawLiteral, "expected a func_literal ancestor")

	scopes := NamedScopes(hierarchy, src, "go")
	require.Len(t, scopes, 1)
	assert.Equal(t, "main", scopes[0].Name)
}

func TestScopeChain_Empty(t *testing.T) {
	assert.Equal(t, "", ScopeChain(nil))
}

func TestExtractBlock_StatementNotWholeFunction(t *testing.T) {
	src := []byte("def f():\n    x = 1\n    return x\n")
	tree := parseSource(t, "python", src)

	matches, err := FindLeafMatches(tree.RootNode(), src, "x")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	scopes := NamedScopes(HierarchyOf(matches[0]), src, "python")
	require.NotEmpty(t, scopes)
	anchor := scopes[len(scopes)-1].Node

	assert.Equal(t, "x = 1", ExtractBlock(matches[0], anchor, src))
	assert.Equal(t, "return x", ExtractBlock(matches[1], anchor, src))
}

func TestExtractBlock_InsideMethod(t *testing.T) {
	src := []byte("class C:\n    def m(self):\n        call(target)\n")
	tree := parseSource(t, "python", src)

	matches, err := FindLeafMatches(tree.RootNode(), src, "target")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	scopes := NamedScopes(HierarchyOf(matches[0]), src, "python")
	anchor := scopes[len(scopes)-1].Node

	assert.Equal(t, "call(target)", ExtractBlock(matches[0], anchor, src))
}

// Pins the anchor rule for matches several levels below the named scope:
// the block is the statement-level child of the scope's body, not the
// match's immediate wrapper and not the whole function.
func TestExtractBlock_DeeplyNestedMatch(t *testing.T) {
	src := []byte("def f():\n    if a:\n        for i in xs:\n            use(target)\n")
	tree := parseSource(t, "python", src)

	matches, err := FindLeafMatches(tree.RootNode(), src, "target")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	scopes := NamedScopes(HierarchyOf(matches[0]), src, "python")
	require.Len(t, scopes, 1)
	anchor := scopes[0].Node

	block := ExtractBlock(matches[0], anchor, src)
	assert.True(t, strings.HasPrefix(block, "if a:"), "block should be the whole if statement, got %q", block)
	assert.Contains(t, block, "for i in xs:")
	assert.Contains(t, block, "use(target)")
	assert.NotContains(t, block, "def f")
}

func TestExtractBlock_IdempotentAnchorSelection(t *testing.T) {
	src := []byte("def f():\n    if a:\n        use(target)\n")
	tree := parseSource(t, "python", src)

	matches, err := FindLeafMatches(tree.RootNode(), src, "target")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	scopes := NamedScopes(HierarchyOf(matches[0]), src, "python")
	anchor := scopes[len(scopes)-1].Node

	first := ExtractBlock(matches[0], anchor, src)
	second := ExtractBlock(matches[0], anchor, src)
	assert.Equal(t, first, second)
}

func TestExtractBlock_NoNamedScopeDegeneratesToRoot(t *testing.T) {
	src := []byte("x = 1\ncall(x)\n")
	tree := parseSource(t, "python", src)
	root := tree.RootNode()

	matches, err := FindLeafMatches(root, src, "x")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	scopes := NamedScopes(HierarchyOf(matches[0]), src, "python")
	assert.Empty(t, scopes)

	// With the root as anchor the climb still terminates and returns a
	// top-level statement.
	assert.Equal(t, "x = 1", ExtractBlock(matches[0], root, src))
}

func TestFlattenBlock_ReplacesNewlinePlusIndent(t *testing.T) {
	flat := FlattenBlock("if a:\n    b()\n    c()")
	assert.Equal(t, "if a:"+Marker+"b()"+Marker+"c()", flat)
	assert.NotContains(t, flat, "\n")
}

func TestFlattenBlock_PreservesOtherWhitespace(t *testing.T) {
	assert.Equal(t, "a  =  1\tz", FlattenBlock("a  =  1\tz"))
	// A newline not followed by whitespace is left alone.
	assert.Equal(t, "a\nb", FlattenBlock("a\nb"))
}

// Flattening an indented block loses no lines: splitting on the marker
// reconstructs the original line count.
func TestFlattenBlock_RoundTripLineCount(t *testing.T) {
	block := "if a:\n    for i in xs:\n        use(i)\n        more(i)"
	lines := strings.Count(block, "\n") + 1

	flat := FlattenBlock(block)
	assert.Len(t, strings.Split(flat, Marker), lines)
}

func TestReport_String(t *testing.T) {
	r := Report{File: "a.py", ScopeChain: "C->m", Block: "call(target)"}
	assert.Equal(t, "a.py C->m: call(target)", r.String())

	empty := Report{File: "a.py", ScopeChain: "", Block: "x = 1"}
	assert.Equal(t, "a.py : x = 1", empty.String())
}
