package solver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/redis/go-redis/v9"
	"github.com/ybbus/jsonrpc/v3"
)

var ErrReceiptNotFound = errors.New("transaction receipt not found")

// SettlementEncoder builds the candidate transaction realizing a settlement.
// The produced transaction carries from, to and input; signing stays with
// the wallet behind the submission endpoint.
type SettlementEncoder interface {
	EncodeSettlement(settlement *Settlement) (SettlementTransaction, error)
}

// JSONRPCSubmitter submits encoded settlements through a standard ethereum
// JSON-RPC endpoint whose wallet manages the submitting account.
type JSONRPCSubmitter struct {
	client  jsonrpc.RPCClient
	encoder SettlementEncoder
}

func NewJSONRPCSubmitter(url string, encoder SettlementEncoder) *JSONRPCSubmitter {
	return &JSONRPCSubmitter{
		client:  jsonrpc.NewClient(url),
		encoder: encoder,
	}
}

func (s *JSONRPCSubmitter) Prepare(settlement *Settlement) (SettlementTransaction, error) {
	return s.encoder.EncodeSettlement(settlement)
}

type sendTransactionArgs struct {
	From       common.Address   `json:"from"`
	To         *common.Address  `json:"to"`
	Input      hexutil.Bytes    `json:"input"`
	AccessList types.AccessList `json:"accessList,omitempty"`
}

func (s *JSONRPCSubmitter) Submit(ctx context.Context, settlement *Settlement, accessList types.AccessList) (common.Hash, error) {
	tx, err := s.encoder.EncodeSettlement(settlement)
	if err != nil {
		return common.Hash{}, err
	}
	args := sendTransactionArgs{
		From:       *tx.From,
		To:         tx.To,
		Input:      tx.Input,
		AccessList: accessList,
	}
	res, err := s.client.Call(ctx, "eth_sendTransaction", []sendTransactionArgs{args})
	if err != nil {
		return common.Hash{}, err
	}
	if res.Error != nil {
		return common.Hash{}, res.Error
	}
	var txHash common.Hash
	if err := res.GetObject(&txHash); err != nil {
		return common.Hash{}, err
	}
	return txHash, nil
}

func (s *JSONRPCSubmitter) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	res, err := s.client.Call(ctx, "eth_getTransactionReceipt", []common.Hash{txHash})
	if err != nil {
		return nil, err
	}
	if res.Error != nil {
		return nil, res.Error
	}
	if res.Result == nil {
		return nil, fmt.Errorf("%w: %s", ErrReceiptNotFound, txHash.Hex())
	}
	var receipt types.Receipt
	if err := res.GetObject(&receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// SettlementEvent is the published summary of one settled solution.
type SettlementEvent struct {
	SolutionID   uint64                    `json:"solutionId"`
	TxHash       common.Hash               `json:"txHash"`
	Trades       int                       `json:"trades"`
	Interactions int                       `json:"interactions"`
	Prices       map[common.Address]string `json:"prices"`
	SettledAt    time.Time                 `json:"settledAt"`
}

func NewSettlementEvent(solutionID uint64, settlement *Settlement, txHash common.Hash) *SettlementEvent {
	prices := make(map[common.Address]string, len(settlement.ClearingPrices))
	for token, price := range settlement.ClearingPrices {
		prices[token] = price.String()
	}
	return &SettlementEvent{
		SolutionID:   solutionID,
		TxHash:       txHash,
		Trades:       len(settlement.Trades),
		Interactions: len(settlement.Interactions),
		Prices:       prices,
		SettledAt:    time.Now().UTC(),
	}
}

// RedisSettlementNotifier publishes settlement events to a pub/sub channel.
type RedisSettlementNotifier struct {
	client     *redis.Client
	pubChannel string
}

func NewRedisSettlementNotifier(redisClient *redis.Client, pubChannel string) *RedisSettlementNotifier {
	return &RedisSettlementNotifier{
		client:     redisClient,
		pubChannel: pubChannel,
	}
}

func (n *RedisSettlementNotifier) NotifySettlement(ctx context.Context, event *SettlementEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.pubChannel, data).Err()
}
