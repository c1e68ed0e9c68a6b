package solver

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestDirectTradeHandler(t *testing.T) {
	settlement := &Settlement{}
	order := sellOrder(DirectTradeHandler{}, false)
	require.NoError(t, DirectTradeHandler{}.ContributeTrade(settlement, &order, base(2)))
	require.Len(t, settlement.Trades, 1)
	require.Equal(t, &order, settlement.Trades[0].Order)
	require.Equal(t, base(2), settlement.Trades[0].ExecutedAmount)
	require.Empty(t, settlement.Interactions)
}

func TestUniswapSwapHandler(t *testing.T) {
	pairAddress := addr(0xaa)
	receiver := addr(0xbb)
	handler := UniswapSwapHandler{Pair: pairAddress, Receiver: receiver}
	pair, err := NewTokenPair(addr(0), addr(1))
	require.NoError(t, err)
	amm := AmmOrder{Tokens: pair, Reserves: [2]*big.Int{base(100), base(100)}, Fee: big.NewRat(3, 1000)}

	settlement := &Settlement{}
	updates := [2]*big.Int{base(2), new(big.Int).Neg(base(1))}
	require.NoError(t, handler.ContributeInteractions(settlement, &amm, updates))
	require.Len(t, settlement.Interactions, 1)

	interaction := settlement.Interactions[0]
	require.Equal(t, pairAddress, interaction.Target)
	require.Zero(t, interaction.Value.Sign())

	data := interaction.CallData
	require.Len(t, data, 4+5*32)
	require.Equal(t, swapSelector[:], data[:4])
	// amount0Out is zero, value flows out on the second token only.
	require.Equal(t, common.LeftPadBytes(nil, 32), data[4:36])
	require.Equal(t, common.LeftPadBytes(base(1).Bytes(), 32), data[36:68])
	require.Equal(t, common.LeftPadBytes(receiver.Bytes(), 32), data[68:100])
}

func TestUniswapSwapHandlerRejectsNoOutflow(t *testing.T) {
	handler := UniswapSwapHandler{Pair: addr(0xaa), Receiver: addr(0xbb)}
	pair, err := NewTokenPair(addr(0), addr(1))
	require.NoError(t, err)
	amm := AmmOrder{Tokens: pair, Reserves: [2]*big.Int{base(100), base(100)}, Fee: big.NewRat(3, 1000)}

	settlement := &Settlement{}
	err = handler.ContributeInteractions(settlement, &amm, [2]*big.Int{base(1), new(big.Int)})
	require.Error(t, err)
	require.Empty(t, settlement.Interactions)
}

func TestStandardHandlers(t *testing.T) {
	handlers := StandardHandlers{Receiver: addr(0xbb)}
	require.Equal(t, DirectTradeHandler{}, handlers.ForOrder())
	require.Equal(t, UniswapSwapHandler{Pair: addr(0xaa), Receiver: addr(0xbb)}, handlers.ForPool(addr(0xaa)))
}
