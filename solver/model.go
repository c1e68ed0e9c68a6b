package solver

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BatchAuctionModel is the request body of the external optimizer. Tokens
// are referenced by identifier, orders and pools by numeric index key.
// A model is built fresh per solving round and never mutated afterwards.
type BatchAuctionModel struct {
	Tokens     map[string]TokenInfoModel `json:"tokens"`
	Orders     map[string]OrderModel     `json:"orders"`
	Uniswaps   map[string]UniswapModel   `json:"uniswaps"`
	DefaultFee float64                   `json:"default_fee"`
}

type TokenInfoModel struct {
	Decimals uint8 `json:"decimals"`
}

type OrderModel struct {
	SellToken        string   `json:"sell_token"`
	BuyToken         string   `json:"buy_token"`
	SellAmount       *big.Int `json:"sell_amount"`
	BuyAmount        *big.Int `json:"buy_amount"`
	AllowPartialFill bool     `json:"allow_partial_fill"`
	IsSellOrder      bool     `json:"is_sell_order"`
}

type UniswapModel struct {
	Token1    string   `json:"token1"`
	Token2    string   `json:"token2"`
	Balance1  *big.Int `json:"balance1"`
	Balance2  *big.Int `json:"balance2"`
	Fee       float64  `json:"fee"`
	Mandatory bool     `json:"mandatory"`
}

// SettledBatchAuctionModel is the optimizer's response: clearing prices per
// token identifier, executed amounts per order index and balance updates per
// pool index. Every key must resolve through the SettlementContext of the
// corresponding request.
type SettledBatchAuctionModel struct {
	Prices   map[string]*big.Int            `json:"prices"`
	Orders   map[string]ExecutedOrderModel  `json:"orders"`
	Uniswaps map[string]UpdatedUniswapModel `json:"uniswaps"`
}

type ExecutedOrderModel struct {
	ExecSellAmount *big.Int `json:"exec_sell_amount"`
	ExecBuyAmount  *big.Int `json:"exec_buy_amount"`
}

type UpdatedUniswapModel struct {
	BalanceUpdate1 *big.Int `json:"balance_update1"`
	BalanceUpdate2 *big.Int `json:"balance_update2"`
}

// SettlementContext is the reverse mapping retained alongside a model. It is
// the sole bridge between solver space (identifiers, indices) and chain
// space (addresses, orders, pools). It is returned alongside the model and
// threaded explicitly through conversion; concurrent solving rounds each own
// their context.
type SettlementContext struct {
	Tokens      map[string]common.Address
	LimitOrders map[string]LimitOrder
	AmmOrders   map[string]AmmOrder
}
