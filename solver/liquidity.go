package solver

import "github.com/ethereum/go-ethereum/common"

// SplitLiquidity separates a heterogeneous liquidity snapshot into its limit
// orders and its pools. Entries with neither field set are skipped.
func SplitLiquidity(liquidity []Liquidity) ([]LimitOrder, []AmmOrder) {
	var (
		limitOrders []LimitOrder
		ammOrders   []AmmOrder
	)
	for _, l := range liquidity {
		switch {
		case l.Limit != nil:
			limitOrders = append(limitOrders, *l.Limit)
		case l.Amm != nil:
			ammOrders = append(ammOrders, *l.Amm)
		}
	}
	return limitOrders, ammOrders
}

// RemoveOrdersWithoutNativeConnection retains only the orders whose sell or
// buy token has a direct pool connection to the native token (or is the
// native token itself). Orders on isolated token islands have no reference
// price against the native token and would be mis-priced downstream; the fee
// estimation also assumes a direct native pool exists.
//
// This is deliberately a one-hop reachability check, not a transitive
// closure. It works most of the time and keeps the behavior of the fee and
// price logic predictable.
func RemoveOrdersWithoutNativeConnection(orders []LimitOrder, amms []AmmOrder, nativeToken common.Address) []LimitOrder {
	connected := map[common.Address]struct{}{nativeToken: {}}
	for _, amm := range amms {
		a, b := amm.Tokens.Get()
		switch nativeToken {
		case a:
			connected[b] = struct{}{}
		case b:
			connected[a] = struct{}{}
		}
	}
	retained := orders[:0]
	for _, order := range orders {
		_, sellOk := connected[order.SellToken]
		_, buyOk := connected[order.BuyToken]
		if sellOk || buyOk {
			retained = append(retained, order)
		}
	}
	return retained
}
