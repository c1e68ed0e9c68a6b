package solver

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SettleCallEncoder encodes a settlement as a call to the settlement
// contract: settle(address[] tokens, uint256[] clearingPrices,
// (address,uint256,bytes)[] interactions). Tokens are sorted by address so
// repeated encodings of the same settlement are byte identical.
type SettleCallEncoder struct {
	From     common.Address
	Contract common.Address
}

func NewSettleCallEncoder(from, contract common.Address) *SettleCallEncoder {
	return &SettleCallEncoder{From: from, Contract: contract}
}

var (
	settleSelector  = crypto.Keccak256([]byte("settle(address[],uint256[],(address,uint256,bytes)[])"))[:4]
	settleArguments = buildSettleArguments()
)

func buildSettleArguments() abi.Arguments {
	tokens, err := abi.NewType("address[]", "", nil)
	if err != nil {
		panic(err)
	}
	prices, err := abi.NewType("uint256[]", "", nil)
	if err != nil {
		panic(err)
	}
	interactions, err := abi.NewType("tuple[]", "", []abi.ArgumentMarshaling{
		{Name: "target", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "callData", Type: "bytes"},
	})
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Name: "tokens", Type: tokens},
		{Name: "clearingPrices", Type: prices},
		{Name: "interactions", Type: interactions},
	}
}

type abiInteraction struct {
	Target   common.Address `abi:"target"`
	Value    *big.Int       `abi:"value"`
	CallData []byte         `abi:"callData"`
}

func (e *SettleCallEncoder) EncodeSettlement(settlement *Settlement) (SettlementTransaction, error) {
	tokens := make([]common.Address, 0, len(settlement.ClearingPrices))
	for token := range settlement.ClearingPrices {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Hex() < tokens[j].Hex()
	})
	prices := make([]*big.Int, len(tokens))
	for i, token := range tokens {
		prices[i] = settlement.ClearingPrices[token]
	}
	interactions := make([]abiInteraction, len(settlement.Interactions))
	for i, interaction := range settlement.Interactions {
		value := interaction.Value
		if value == nil {
			value = new(big.Int)
		}
		interactions[i] = abiInteraction{
			Target:   interaction.Target,
			Value:    value,
			CallData: interaction.CallData,
		}
	}

	packed, err := settleArguments.Pack(tokens, prices, interactions)
	if err != nil {
		return SettlementTransaction{}, fmt.Errorf("failed to pack settle call: %w", err)
	}
	from, contract := e.From, e.Contract
	return SettlementTransaction{
		From:  &from,
		To:    &contract,
		Input: append(append([]byte{}, settleSelector...), packed...),
	}, nil
}
