// Package scopegrep implements structural text search over tree-sitter
// syntax trees. It finds every leaf token whose text contains a query
// substring and reports each match with the chain of enclosing named
// scopes and the narrowest enclosing statement-level block.
//
// # Pipeline
//
// For each source file, scopegrep:
//
//  1. Parses the file with the tree-sitter grammar matching its
//     extension.
//  2. Walks the tree in pre-order and collects every childless node
//     whose span text contains the query (see [FindLeafMatches]).
//  3. For each match, builds the root-to-leaf ancestor chain
//     ([HierarchyOf]), projects it down to named class- and
//     function-like scopes ([NamedScopes]), and extracts the block to
//     report ([ExtractBlock]).
//  4. Flattens the block to a single display line ([FlattenBlock]) and
//     emits one [Report] per match.
//
// # Usage
//
// Create an Engine and search a directory:
//
//	e, err := scopegrep.New(scopegrep.WithLanguages("python"))
//	if err != nil { ... }
//	defer e.Close()
//
//	reports := e.SearchDirectory(context.Background(), "target", "path/to/project")
//	for _, r := range reports {
//		fmt.Println(r)
//	}
//
// A failure on one file (unreadable, unparseable, or not valid UTF-8 at
// a matched span) skips that file and never aborts the run.
//
// # Block selection
//
// The reported block is the match's ancestor whose grandparent is the
// innermost enclosing named scope. Named scopes wrap their statements in
// a body node, so stopping at the grandparent yields a statement-level
// sibling rather than the body wrapper or the bare token. When no named
// scope encloses the match, the anchor degenerates to the tree root and
// the block may be the file's outermost statement.
package scopegrep
