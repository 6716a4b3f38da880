package scopegrep

import "fmt"

// Report is one search hit: the file it occurred in, the `->`-joined
// chain of enclosing named scopes (empty when the match is outside any
// named scope), and the flattened source block containing the match.
type Report struct {
	File       string `json:"file"`
	ScopeChain string `json:"scopeChain"`
	Block      string `json:"block"`
}

// String renders the report in the canonical single-line form:
//
//	<file-path> <scope-chain>: <flattened-block>
func (r Report) String() string {
	return fmt.Sprintf("%s %s: %s", r.File, r.ScopeChain, r.Block)
}
