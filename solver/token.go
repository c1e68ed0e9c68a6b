package solver

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// The solver api identifies tokens through strings. We use the hex encoded
// address prefixed with "t" because token names must start with a letter.
// The mapping is bijective: one identifier per address, derived from the
// address alone, so collisions cannot occur over a de-duplicated set.
func tokenID(token common.Address) string {
	return fmt.Sprintf("t%x", token)
}

// mapTokensForSolver collects every token appearing in the liquidity and
// assigns each its solver-facing identifier.
func mapTokensForSolver(liquidity []Liquidity) map[string]common.Address {
	seen := make(map[common.Address]struct{})
	for _, l := range liquidity {
		switch {
		case l.Limit != nil:
			seen[l.Limit.SellToken] = struct{}{}
			seen[l.Limit.BuyToken] = struct{}{}
		case l.Amm != nil:
			a, b := l.Amm.Tokens.Get()
			seen[a] = struct{}{}
			seen[b] = struct{}{}
		}
	}
	tokens := make(map[string]common.Address, len(seen))
	for token := range seen {
		tokens[tokenID(token)] = token
	}
	return tokens
}
