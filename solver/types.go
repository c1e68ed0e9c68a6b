// Package solver implements the settlement solving pipeline of the batch
// auction protocol. Here is the full flow of data through one solving round:
//
// driver -> Engine.Solve with a liquidity snapshot and a deadline
//
//	Engine -> HTTPSolver turns the snapshot into a batch auction model,
//	          sends it to the external optimizer and converts the settled
//	          model back into an executable Settlement
//	Engine -> SimulatorAPI estimates the storage access list of the
//	          settlement transaction
//
// Engine -> SettlementNotifier publishes the settlement summary
// Engine -> Storage persists the solving round for audit
//
// driver -> Engine.Settle with a previously returned solution id
//
//	Engine -> TransactionSubmitter submits the settlement on chain
package solver

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrIdenticalTokens       = errors.New("token pair with identical tokens")
	ErrUnknownToken          = errors.New("settled model references unknown token")
	ErrUnknownOrder          = errors.New("settled model references unknown order")
	ErrUnknownPool           = errors.New("settled model references unknown pool")
	ErrExecutedAmountBounds  = errors.New("executed amount violates order bounds")
	ErrIncompleteTransaction = errors.New("transaction misses required fields")
	ErrEmptyAccessList       = errors.New("simulator returned empty access list")
	ErrNoSolution            = errors.New("no solution")
	ErrUnknownSolution       = errors.New("unknown solution id")
)

// OrderKind is the direction of a limit order.
type OrderKind uint8

const (
	KindSell OrderKind = iota
	KindBuy
)

func (k OrderKind) String() string {
	if k == KindBuy {
		return "buy"
	}
	return "sell"
}

// TokenPair is an unordered pair of distinct token addresses. The pair is
// stored in a canonical order so that equal pairs compare equal regardless
// of construction order.
type TokenPair struct {
	first  common.Address
	second common.Address
}

func NewTokenPair(a, b common.Address) (TokenPair, error) {
	if a == b {
		return TokenPair{}, ErrIdenticalTokens
	}
	if b.Hex() < a.Hex() {
		a, b = b, a
	}
	return TokenPair{first: a, second: b}, nil
}

// Get returns both tokens in canonical order.
func (p TokenPair) Get() (common.Address, common.Address) {
	return p.first, p.second
}

// LimitOrder is a standing order to trade SellAmount of SellToken against
// BuyAmount of BuyToken.
type LimitOrder struct {
	SellToken         common.Address
	BuyToken          common.Address
	SellAmount        *big.Int
	BuyAmount         *big.Int
	Kind              OrderKind
	PartiallyFillable bool

	// SettlementHandling contributes this order's trade to a settlement.
	SettlementHandling LimitOrderSettlementHandler
}

// AmmOrder is the tradable state of a constant-product pool: its token pair
// and the reserve behind each token, in pair order.
type AmmOrder struct {
	Tokens   TokenPair
	Reserves [2]*big.Int
	Fee      *big.Rat

	// SettlementHandling contributes the interactions realizing a swap
	// against this pool to a settlement.
	SettlementHandling AmmSettlementHandler
}

// Liquidity is a tagged union: exactly one field is set.
type Liquidity struct {
	Limit *LimitOrder
	Amm   *AmmOrder
}

// Trade is one executed order inside a settlement.
type Trade struct {
	Order          *LimitOrder
	ExecutedAmount *big.Int
}

// Interaction is an external call required to realize a settlement on chain.
type Interaction struct {
	Target   common.Address
	Value    *big.Int
	CallData []byte
}

// Settlement is the chain-executable outcome of one solved auction round.
// Interactions are ordered; on-chain execution order affects intermediate
// balances.
type Settlement struct {
	ClearingPrices map[common.Address]*big.Int
	Trades         []Trade
	Interactions   []Interaction
}

// AddTrade records an executed order together with its clearing prices.
func (s *Settlement) AddTrade(order *LimitOrder, executedAmount *big.Int) {
	s.Trades = append(s.Trades, Trade{Order: order, ExecutedAmount: executedAmount})
}

// AddInteraction appends an external call to the settlement. Calls execute
// in append order.
func (s *Settlement) AddInteraction(i Interaction) {
	s.Interactions = append(s.Interactions, i)
}

// LimitOrderSettlementHandler is attached to every limit order by the
// liquidity source and is invoked once when the order's execution is folded
// into a settlement.
type LimitOrderSettlementHandler interface {
	ContributeTrade(s *Settlement, order *LimitOrder, executedAmount *big.Int) error
}

// AmmSettlementHandler is attached to every pool by the liquidity source and
// is invoked once with the solver's balance updates, in pair order. Positive
// updates flow into the pool, negative updates flow out.
type AmmSettlementHandler interface {
	ContributeInteractions(s *Settlement, amm *AmmOrder, updates [2]*big.Int) error
}

// SettlementTransaction is a candidate transaction realizing a settlement.
// From, To and Input must all be populated before access list estimation.
type SettlementTransaction struct {
	From  *common.Address
	To    *common.Address
	Input hexutil.Bytes
}
