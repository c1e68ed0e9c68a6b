package solver

import (
	"math/big"
	"strconv"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type recordingTradeHandler struct {
	orders  []*LimitOrder
	amounts []*big.Int
}

func (h *recordingTradeHandler) ContributeTrade(s *Settlement, order *LimitOrder, executedAmount *big.Int) error {
	h.orders = append(h.orders, order)
	h.amounts = append(h.amounts, executedAmount)
	s.AddTrade(order, executedAmount)
	return nil
}

func sellOrder(handler LimitOrderSettlementHandler, partial bool) LimitOrder {
	return LimitOrder{
		SellToken:          addr(1),
		BuyToken:           addr(0),
		SellAmount:         base(2),
		BuyAmount:          base(1),
		Kind:               KindSell,
		PartiallyFillable:  partial,
		SettlementHandling: handler,
	}
}

func settlementContext(orders map[string]LimitOrder, amms map[string]AmmOrder) *SettlementContext {
	tokens := map[string]common.Address{
		tokenID(addr(0)): addr(0),
		tokenID(addr(1)): addr(1),
	}
	return &SettlementContext{Tokens: tokens, LimitOrders: orders, AmmOrders: amms}
}

func TestConvertSettlementPrices(t *testing.T) {
	settled := &SettledBatchAuctionModel{
		Prices: map[string]*big.Int{
			tokenID(addr(0)): big.NewInt(200),
			tokenID(addr(1)): big.NewInt(100),
		},
	}
	settlement, err := ConvertSettlement(settled, settlementContext(nil, nil))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(200), settlement.ClearingPrices[addr(0)])
	require.Equal(t, big.NewInt(100), settlement.ClearingPrices[addr(1)])
}

func TestConvertSettlementUnknownReferences(t *testing.T) {
	context := settlementContext(nil, nil)

	_, err := ConvertSettlement(&SettledBatchAuctionModel{
		Prices: map[string]*big.Int{"t99": big.NewInt(1)},
	}, context)
	require.ErrorIs(t, err, ErrUnknownToken)

	_, err = ConvertSettlement(&SettledBatchAuctionModel{
		Orders: map[string]ExecutedOrderModel{"7": {ExecSellAmount: base(1)}},
	}, context)
	require.ErrorIs(t, err, ErrUnknownOrder)

	_, err = ConvertSettlement(&SettledBatchAuctionModel{
		Uniswaps: map[string]UpdatedUniswapModel{"7": {BalanceUpdate1: base(1)}},
	}, context)
	require.ErrorIs(t, err, ErrUnknownPool)
}

func TestConvertSettlementExecutedAmountBounds(t *testing.T) {
	cases := []struct {
		name     string
		kind     OrderKind
		partial  bool
		executed ExecutedOrderModel
		err      error
	}{
		{
			name:     "full fill",
			kind:     KindSell,
			executed: ExecutedOrderModel{ExecSellAmount: base(2), ExecBuyAmount: base(1)},
		},
		{
			name:     "exceeds sell amount",
			kind:     KindSell,
			executed: ExecutedOrderModel{ExecSellAmount: base(3)},
			err:      ErrExecutedAmountBounds,
		},
		{
			name:     "partial fill of fill-or-kill order",
			kind:     KindSell,
			executed: ExecutedOrderModel{ExecSellAmount: base(1)},
			err:      ErrExecutedAmountBounds,
		},
		{
			name:     "partial fill allowed",
			kind:     KindSell,
			partial:  true,
			executed: ExecutedOrderModel{ExecSellAmount: base(1)},
		},
		{
			name:     "buy order bound is buy amount",
			kind:     KindBuy,
			executed: ExecutedOrderModel{ExecBuyAmount: base(1), ExecSellAmount: base(2)},
		},
		{
			name:     "buy order exceeds buy amount",
			kind:     KindBuy,
			executed: ExecutedOrderModel{ExecBuyAmount: base(2)},
			err:      ErrExecutedAmountBounds,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := &recordingTradeHandler{}
			order := sellOrder(handler, tc.partial)
			order.Kind = tc.kind
			context := settlementContext(map[string]LimitOrder{"0": order}, nil)
			settled := &SettledBatchAuctionModel{
				Orders: map[string]ExecutedOrderModel{"0": tc.executed},
			}

			settlement, err := ConvertSettlement(settled, context)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				require.Empty(t, handler.orders)
				return
			}
			require.NoError(t, err)
			require.Len(t, settlement.Trades, 1)
			want := executedAmount(&order, tc.executed)
			require.Equal(t, want, handler.amounts[0])
		})
	}
}

func TestConvertSettlementSkipsUntouchedEntities(t *testing.T) {
	tradeHandler := &recordingTradeHandler{}
	ammHandler := &recordingAmmHandler{}
	pair, err := NewTokenPair(addr(0), addr(1))
	require.NoError(t, err)
	context := settlementContext(
		map[string]LimitOrder{"0": sellOrder(tradeHandler, false)},
		map[string]AmmOrder{"0": {
			Tokens:             pair,
			Reserves:           [2]*big.Int{base(100), base(100)},
			Fee:                big.NewRat(3, 1000),
			SettlementHandling: ammHandler,
		}},
	)
	settled := &SettledBatchAuctionModel{
		Orders:   map[string]ExecutedOrderModel{"0": {}},
		Uniswaps: map[string]UpdatedUniswapModel{"0": {BalanceUpdate1: new(big.Int), BalanceUpdate2: nil}},
	}

	settlement, err := ConvertSettlement(settled, context)
	require.NoError(t, err)
	require.Empty(t, settlement.Trades)
	require.Empty(t, settlement.Interactions)
	require.Empty(t, tradeHandler.orders)
	require.Empty(t, ammHandler.amms)
}

func TestConvertSettlementDeterministicOrdering(t *testing.T) {
	pair, err := NewTokenPair(addr(0), addr(1))
	require.NoError(t, err)

	handler := &recordingAmmHandler{}
	amms := make(map[string]AmmOrder)
	updates := make(map[string]UpdatedUniswapModel)
	for i := 0; i < 12; i++ {
		index := strconv.Itoa(i)
		amms[index] = AmmOrder{
			Tokens:             pair,
			Reserves:           [2]*big.Int{base(100), base(100)},
			Fee:                big.NewRat(3, 1000),
			SettlementHandling: handler,
		}
		updates[index] = UpdatedUniswapModel{
			BalanceUpdate1: big.NewInt(int64(i + 1)),
			BalanceUpdate2: big.NewInt(int64(-(i + 1))),
		}
	}
	context := settlementContext(nil, amms)
	settled := &SettledBatchAuctionModel{Uniswaps: updates}

	// Map iteration order is random, the conversion order must not be. The
	// index sort is numeric so "10" comes after "9", not after "1".
	for run := 0; run < 5; run++ {
		handler.amms = nil
		handler.updates = nil
		_, err := ConvertSettlement(settled, context)
		require.NoError(t, err)
		require.Len(t, handler.updates, 12)
		for i, update := range handler.updates {
			require.Equal(t, big.NewInt(int64(i+1)), update[0])
		}
	}
}

func TestConvertSettlementPairOrderPreserved(t *testing.T) {
	handler := &recordingAmmHandler{}
	pair, err := NewTokenPair(addr(1), addr(0))
	require.NoError(t, err)
	context := settlementContext(nil, map[string]AmmOrder{"0": {
		Tokens:             pair,
		Reserves:           [2]*big.Int{base(100), base(100)},
		Fee:                big.NewRat(3, 1000),
		SettlementHandling: handler,
	}})
	settled := &SettledBatchAuctionModel{
		Uniswaps: map[string]UpdatedUniswapModel{"0": {
			BalanceUpdate1: base(2),
			BalanceUpdate2: new(big.Int).Neg(base(1)),
		}},
	}

	_, err = ConvertSettlement(settled, context)
	require.NoError(t, err)
	require.Len(t, handler.updates, 1)
	require.Equal(t, base(2), handler.updates[0][0])
	require.Equal(t, new(big.Int).Neg(base(1)), handler.updates[0][1])
}
