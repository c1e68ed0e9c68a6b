package solver

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// ConvertSettlement maps the optimizer's response back through the retained
// context into an executable settlement. Any reference to a token, order or
// pool absent from the context means the solver and this node desynchronized
// and is fatal to the round.
//
// Orders and pools are folded in ascending index order so the interaction
// sequence is deterministic; within one entity the attached settlement
// handler decides what it contributes and in which order.
func ConvertSettlement(settled *SettledBatchAuctionModel, context *SettlementContext) (*Settlement, error) {
	settlement := &Settlement{
		ClearingPrices: make(map[common.Address]*big.Int, len(settled.Prices)),
	}

	for id, price := range settled.Prices {
		token, ok := context.Tokens[id]
		if !ok {
			return nil, fmt.Errorf("%w: price for %q", ErrUnknownToken, id)
		}
		settlement.ClearingPrices[token] = price
	}

	for _, index := range sortedIndices(settled.Orders) {
		executed := settled.Orders[index]
		order, ok := context.LimitOrders[index]
		if !ok {
			return nil, fmt.Errorf("%w: order %q", ErrUnknownOrder, index)
		}
		amount := executedAmount(&order, executed)
		if amount.Sign() == 0 {
			continue
		}
		if err := checkExecutedAmount(&order, amount); err != nil {
			return nil, fmt.Errorf("order %q: %w", index, err)
		}
		if err := order.SettlementHandling.ContributeTrade(settlement, &order, amount); err != nil {
			return nil, fmt.Errorf("order %q settlement handling: %w", index, err)
		}
	}

	for _, index := range sortedIndices(settled.Uniswaps) {
		update := settled.Uniswaps[index]
		amm, ok := context.AmmOrders[index]
		if !ok {
			return nil, fmt.Errorf("%w: uniswap %q", ErrUnknownPool, index)
		}
		if isZero(update.BalanceUpdate1) && isZero(update.BalanceUpdate2) {
			continue
		}
		// Updates keep the sign and magnitude the solver reported and stay
		// in pair order; the handler must not swap token sides.
		updates := [2]*big.Int{orZero(update.BalanceUpdate1), orZero(update.BalanceUpdate2)}
		if err := amm.SettlementHandling.ContributeInteractions(settlement, &amm, updates); err != nil {
			return nil, fmt.Errorf("uniswap %q settlement handling: %w", index, err)
		}
	}

	return settlement, nil
}

// executedAmount picks the solver-reported amount matching the order's kind:
// sell orders execute in sell token units, buy orders in buy token units.
func executedAmount(order *LimitOrder, executed ExecutedOrderModel) *big.Int {
	if order.Kind == KindBuy {
		return orZero(executed.ExecBuyAmount)
	}
	return orZero(executed.ExecSellAmount)
}

// checkExecutedAmount enforces the order bounds: the executed amount never
// exceeds the declared amount, and an order that does not allow partial
// fills executes fully or not at all.
func checkExecutedAmount(order *LimitOrder, executed *big.Int) error {
	bound := order.SellAmount
	if order.Kind == KindBuy {
		bound = order.BuyAmount
	}
	if executed.Cmp(bound) > 0 {
		return fmt.Errorf("%w: executed %s exceeds %s amount %s", ErrExecutedAmountBounds, executed, order.Kind, bound)
	}
	if !order.PartiallyFillable && executed.Cmp(bound) != 0 {
		return fmt.Errorf("%w: partial fill %s of %s on fill-or-kill order", ErrExecutedAmountBounds, executed, bound)
	}
	return nil
}

func sortedIndices[T any](m map[string]T) []string {
	indices := make([]string, 0, len(m))
	for index := range m {
		indices = append(indices, index)
	}
	sort.Slice(indices, func(i, j int) bool {
		a, errA := strconv.Atoi(indices[i])
		b, errB := strconv.Atoi(indices[j])
		if errA != nil || errB != nil {
			return indices[i] < indices[j]
		}
		return a < b
	})
	return indices
}

func isZero(x *big.Int) bool {
	return x == nil || x.Sign() == 0
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}
