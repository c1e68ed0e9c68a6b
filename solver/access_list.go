package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Sajjad-Khoshdooni/settlement-node/metrics"
)

// AccessListResult is one per-transaction outcome of a batch estimation.
type AccessListResult struct {
	List types.AccessList
	Err  error
}

// AccessListEstimating estimates the storage access lists of candidate
// settlement transactions.
type AccessListEstimating interface {
	EstimateAccessLists(ctx context.Context, txs []SettlementTransaction) []AccessListResult
	EstimateAccessList(ctx context.Context, tx SettlementTransaction) (types.AccessList, error)
}

type simulationRequest struct {
	NetworkID          string         `json:"network_id"`
	BlockNumber        uint64         `json:"block_number"`
	From               common.Address `json:"from"`
	Input              hexutil.Bytes  `json:"input"`
	To                 common.Address `json:"to"`
	GenerateAccessList bool           `json:"generate_access_list"`
}

type simulationResponse struct {
	GeneratedAccessList []accessListItem `json:"generated_access_list"`
}

// accessListItem mirrors the simulator's wire shape, which differs from the
// canonical one: fields are snake_case and storage_keys is omitted entirely
// when empty instead of being an empty array.
type accessListItem struct {
	Address     common.Address `json:"address"`
	StorageKeys []common.Hash  `json:"storage_keys"`
}

type blockNumberResponse struct {
	BlockNumber uint64 `json:"block_number"`
}

// SimulatorAPI is a client of the external simulation service. Batch
// estimations fan out concurrently; the rate limiter bounds the aggregate
// simulate call rate, and concurrent workers share one cached block number
// lookup.
type SimulatorAPI struct {
	log       *zap.Logger
	url       string
	client    *http.Client
	apiKey    string
	networkID string
	limiter   *rate.Limiter

	mu              sync.RWMutex
	blockNumber     uint64
	blockNumberTime time.Time
}

const blockNumberCacheTime = time.Second

func NewSimulatorAPI(log *zap.Logger, url, apiKey, networkID string, simRateLimit rate.Limit) *SimulatorAPI {
	return &SimulatorAPI{
		log:       log.Named("simulator"),
		url:       url,
		client:    &http.Client{},
		apiKey:    apiKey,
		networkID: networkID,
		limiter:   rate.NewLimiter(simRateLimit, 1),
	}
}

// BlockNumber returns the simulator's current reference block for the
// configured network, cached briefly so a batch of concurrent estimations
// resolves it once.
func (s *SimulatorAPI) BlockNumber(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	if time.Since(s.blockNumberTime) < blockNumberCacheTime {
		defer s.mu.RUnlock()
		return s.blockNumber, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.blockNumberTime) < blockNumberCacheTime {
		return s.blockNumber, nil
	}

	url := fmt.Sprintf("%s/network/%s/block-number", s.url, s.networkID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create block number request: %w", err)
	}
	s.setHeaders(req)
	res, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return 0, fmt.Errorf("block number response is not success: status %d", res.StatusCode)
	}
	var block blockNumberResponse
	if err := json.NewDecoder(res.Body).Decode(&block); err != nil {
		return 0, fmt.Errorf("failed to decode block number response: %w", err)
	}

	s.blockNumber = block.BlockNumber
	s.blockNumberTime = time.Now()
	return s.blockNumber, nil
}

func (s *SimulatorAPI) simulate(ctx context.Context, request simulationRequest) (*simulationResponse, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode simulation request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create simulation request: %w", err)
	}
	s.setHeaders(req)
	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send simulation request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("simulation response is not success: status %d", res.StatusCode)
	}
	var response simulationResponse
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode simulation response: %w", err)
	}
	return &response, nil
}

func (s *SimulatorAPI) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-access-key", s.apiKey)
	}
}

// EstimateAccessLists estimates all transactions concurrently and returns
// one result per input, order preserving. A failure on one transaction does
// not affect the others.
func (s *SimulatorAPI) EstimateAccessLists(ctx context.Context, txs []SettlementTransaction) []AccessListResult {
	results := make([]AccessListResult, len(txs))
	var wg sync.WaitGroup
	for i, tx := range txs {
		wg.Add(1)
		go func(i int, tx SettlementTransaction) {
			defer wg.Done()
			list, err := s.estimate(ctx, tx)
			if err != nil {
				metrics.IncAccessListFailure()
			}
			results[i] = AccessListResult{List: list, Err: err}
		}(i, tx)
	}
	wg.Wait()
	return results
}

// EstimateAccessList is the single-transaction convenience form.
func (s *SimulatorAPI) EstimateAccessList(ctx context.Context, tx SettlementTransaction) (types.AccessList, error) {
	result := s.EstimateAccessLists(ctx, []SettlementTransaction{tx})[0]
	return result.List, result.Err
}

func (s *SimulatorAPI) estimate(ctx context.Context, tx SettlementTransaction) (types.AccessList, error) {
	// Local preconditions come before any network call.
	if tx.From == nil {
		return nil, fmt.Errorf("%w: from", ErrIncompleteTransaction)
	}
	if tx.To == nil {
		return nil, fmt.Errorf("%w: to", ErrIncompleteTransaction)
	}
	if len(tx.Input) == 0 {
		return nil, fmt.Errorf("%w: input", ErrIncompleteTransaction)
	}

	blockNumber, err := s.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	response, err := s.simulate(ctx, simulationRequest{
		NetworkID:          s.networkID,
		BlockNumber:        blockNumber,
		From:               *tx.From,
		Input:              tx.Input,
		To:                 *tx.To,
		GenerateAccessList: true,
	})
	if err != nil {
		return nil, err
	}
	// A real settlement transaction always touches storage, so an empty
	// list means the simulation went wrong, not that nothing was accessed.
	if len(response.GeneratedAccessList) == 0 {
		return nil, ErrEmptyAccessList
	}
	list := make(types.AccessList, len(response.GeneratedAccessList))
	for i, item := range response.GeneratedAccessList {
		storageKeys := item.StorageKeys
		if storageKeys == nil {
			storageKeys = []common.Hash{}
		}
		list[i] = types.AccessTuple{Address: item.Address, StorageKeys: storageKeys}
	}
	return list, nil
}
