package solver

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DirectTradeHandler records the executed order as a plain trade against the
// clearing prices, with no extra interactions.
type DirectTradeHandler struct{}

func (DirectTradeHandler) ContributeTrade(s *Settlement, order *LimitOrder, executedAmount *big.Int) error {
	s.AddTrade(order, executedAmount)
	return nil
}

// swap(uint256 amount0Out, uint256 amount1Out, address to, bytes data)
var swapSelector = [4]byte{0x02, 0x2c, 0x0d, 0x9f}

// UniswapSwapHandler realizes a solved balance update as a swap call against
// a uniswap v2 style pair contract. The handler is attached per pool and
// carries the pair address and the settlement contract receiving the output.
type UniswapSwapHandler struct {
	Pair     common.Address
	Receiver common.Address
}

func (h UniswapSwapHandler) ContributeInteractions(s *Settlement, amm *AmmOrder, updates [2]*big.Int) error {
	// A valid swap moves value in on one side and out on the other.
	if updates[0].Sign() >= 0 && updates[1].Sign() >= 0 {
		return fmt.Errorf("pool %s: no outgoing balance update", h.Pair.Hex())
	}
	amountOut := [2]*big.Int{new(big.Int), new(big.Int)}
	for i, update := range updates {
		if update.Sign() < 0 {
			amountOut[i] = new(big.Int).Neg(update)
		}
	}
	s.AddInteraction(Interaction{
		Target:   h.Pair,
		Value:    new(big.Int),
		CallData: packSwap(amountOut[0], amountOut[1], h.Receiver),
	})
	return nil
}

// StandardHandlers supplies the default settlement handling: direct trades
// for limit orders and pair swaps routed to the settlement contract for
// pools.
type StandardHandlers struct {
	Receiver common.Address
}

func (h StandardHandlers) ForOrder() LimitOrderSettlementHandler {
	return DirectTradeHandler{}
}

func (h StandardHandlers) ForPool(pair common.Address) AmmSettlementHandler {
	return UniswapSwapHandler{Pair: pair, Receiver: h.Receiver}
}

func packSwap(amount0Out, amount1Out *big.Int, to common.Address) []byte {
	data := make([]byte, 0, 4+5*32)
	data = append(data, swapSelector[:]...)
	data = append(data, common.LeftPadBytes(amount0Out.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount1Out.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	// empty bytes argument: offset to the tail, then zero length
	data = append(data, common.LeftPadBytes(big.NewInt(4*32).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(nil, 32)...)
	return data
}
