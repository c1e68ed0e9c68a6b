package solver

import (
	"testing"
	"unicode"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestTokenIDStartsWithLetter(t *testing.T) {
	// Addresses are hex and may start with a digit; identifiers must not.
	tokens := []common.Address{
		common.HexToAddress("0x0000000000000000000000000000000000000000"),
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x9008d19f58aabd9ed0d60971565aa8510560ab41"),
		common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"),
	}
	for _, token := range tokens {
		id := tokenID(token)
		require.True(t, unicode.IsLetter(rune(id[0])), "identifier %q must start with a letter", id)
	}
}

func TestTokenIDRoundTrip(t *testing.T) {
	token := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	require.Equal(t, "t"+"c02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", tokenID(token))
}

func TestMapTokensForSolverUnique(t *testing.T) {
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")
	c := common.HexToAddress("0x03")
	pair, err := NewTokenPair(b, c)
	require.NoError(t, err)

	liquidity := []Liquidity{
		{Limit: &LimitOrder{SellToken: a, BuyToken: b}},
		{Limit: &LimitOrder{SellToken: b, BuyToken: a}},
		{Amm: &AmmOrder{Tokens: pair}},
	}
	tokens := mapTokensForSolver(liquidity)
	require.Len(t, tokens, 3)

	seen := make(map[common.Address]bool)
	for id, token := range tokens {
		require.Equal(t, tokenID(token), id)
		require.False(t, seen[token], "token %s mapped twice", token.Hex())
		seen[token] = true
	}
}
