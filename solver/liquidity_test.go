package solver

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func addr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

func TestSplitLiquidity(t *testing.T) {
	pair, err := NewTokenPair(addr(1), addr(2))
	require.NoError(t, err)
	liquidity := []Liquidity{
		{Limit: &LimitOrder{SellToken: addr(1), BuyToken: addr(2)}},
		{Amm: &AmmOrder{Tokens: pair}},
		{Limit: &LimitOrder{SellToken: addr(2), BuyToken: addr(1)}},
	}
	orders, amms := SplitLiquidity(liquidity)
	require.Len(t, orders, 2)
	require.Len(t, amms, 1)
}

func TestRemoveOrdersWithoutNativeConnection(t *testing.T) {
	nativeToken := addr(0)
	tokens := []common.Address{addr(1), addr(2), addr(3)}

	pair, err := NewTokenPair(nativeToken, tokens[0])
	require.NoError(t, err)
	amms := []AmmOrder{{
		Tokens:   pair,
		Reserves: [2]*big.Int{big.NewInt(0), big.NewInt(0)},
		Fee:      big.NewRat(0, 1),
	}}

	makeOrder := func(buyToken, sellToken common.Address) LimitOrder {
		return LimitOrder{SellToken: sellToken, BuyToken: buyToken, Kind: KindSell}
	}

	orders := []LimitOrder{
		makeOrder(nativeToken, tokens[0]),
		makeOrder(nativeToken, tokens[1]),
		makeOrder(tokens[0], tokens[1]),
		makeOrder(tokens[1], tokens[0]),
		makeOrder(tokens[1], tokens[2]),
		makeOrder(tokens[2], tokens[1]),
	}

	retained := RemoveOrdersWithoutNativeConnection(orders, amms, nativeToken)
	require.Len(t, retained, 4)
	// Every retained order touches the native token or its one-hop pool
	// neighbor.
	for _, order := range retained {
		touches := order.SellToken == nativeToken || order.BuyToken == nativeToken ||
			order.SellToken == tokens[0] || order.BuyToken == tokens[0]
		require.True(t, touches)
	}
}

func TestRemoveOrdersWithoutNativeConnectionNoPools(t *testing.T) {
	nativeToken := addr(0)
	orders := []LimitOrder{
		{SellToken: addr(1), BuyToken: addr(2)},
		{SellToken: nativeToken, BuyToken: addr(2)},
	}
	retained := RemoveOrdersWithoutNativeConnection(orders, nil, nativeToken)
	require.Len(t, retained, 1)
	require.Equal(t, nativeToken, retained[0].SellToken)
}
