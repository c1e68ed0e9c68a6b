package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Sajjad-Khoshdooni/settlement-node/metrics"
)

// SolverConfig is passed as url parameters to the solver. TimeLimit is
// advisory: it bounds the optimizer's own search, it is not a client-side
// timeout.
type SolverConfig struct {
	MaxNrExecOrders uint32
	TimeLimit       uint32
	// DefaultFee goes into the model body rather than the query.
	DefaultFee float64
}

func (c SolverConfig) addToQuery(q url.Values) {
	q.Set("max_nr_exec_orders", strconv.FormatUint(uint64(c.MaxNrExecOrders), 10))
	q.Set("time_limit", strconv.FormatUint(uint64(c.TimeLimit), 10))
}

// HTTPSolver talks to the external optimization service. One instance is
// safe for concurrent solving rounds: all per-round state lives in the model
// and context values.
type HTTPSolver struct {
	log         *zap.Logger
	base        *url.URL
	client      *http.Client
	apiKey      string
	config      SolverConfig
	nativeToken common.Address
}

func NewHTTPSolver(log *zap.Logger, base *url.URL, apiKey string, config SolverConfig, nativeToken common.Address) *HTTPSolver {
	return &HTTPSolver{
		log:         log.Named("solver"),
		base:        base,
		client:      &http.Client{},
		apiKey:      apiKey,
		config:      config,
		nativeToken: nativeToken,
	}
}

func orderModels(orders map[string]LimitOrder) map[string]OrderModel {
	models := make(map[string]OrderModel, len(orders))
	for index, order := range orders {
		models[index] = OrderModel{
			SellToken:        tokenID(order.SellToken),
			BuyToken:         tokenID(order.BuyToken),
			SellAmount:       order.SellAmount,
			BuyAmount:        order.BuyAmount,
			AllowPartialFill: order.PartiallyFillable,
			IsSellOrder:      order.Kind == KindSell,
		}
	}
	return models
}

func ammModels(amms map[string]AmmOrder) map[string]UniswapModel {
	models := make(map[string]UniswapModel, len(amms))
	for index, amm := range amms {
		token1, token2 := amm.Tokens.Get()
		// The exact rational fee is deliberately narrowed to a float here,
		// and only here, because the solver's numeric domain is floating
		// point. Do not move this narrowing elsewhere in the pipeline.
		fee, _ := amm.Fee.Float64()
		models[index] = UniswapModel{
			Token1:   tokenID(token1),
			Token2:   tokenID(token2),
			Balance1: amm.Reserves[0],
			Balance2: amm.Reserves[1],
			Fee:      fee,
		}
	}
	return models
}

func tokenModels(tokens map[string]common.Address) map[string]TokenInfoModel {
	models := make(map[string]TokenInfoModel, len(tokens))
	for id := range tokens {
		models[id] = TokenInfoModel{Decimals: 18}
	}
	return models
}

func indexOrders(orders []LimitOrder) map[string]LimitOrder {
	indexed := make(map[string]LimitOrder, len(orders))
	for i, order := range orders {
		indexed[strconv.Itoa(i)] = order
	}
	return indexed
}

func indexAmms(amms []AmmOrder) map[string]AmmOrder {
	indexed := make(map[string]AmmOrder, len(amms))
	for i, amm := range amms {
		indexed[strconv.Itoa(i)] = amm
	}
	return indexed
}

// PrepareModel translates a liquidity snapshot into the solver request and
// the reverse-mapping context needed to translate the response back.
func (s *HTTPSolver) PrepareModel(liquidity []Liquidity) (*BatchAuctionModel, *SettlementContext) {
	tokens := mapTokensForSolver(liquidity)
	limitOrders, ammOrders := SplitLiquidity(liquidity)
	limitOrders = RemoveOrdersWithoutNativeConnection(limitOrders, ammOrders, s.nativeToken)
	indexedOrders := indexOrders(limitOrders)
	indexedAmms := indexAmms(ammOrders)
	model := &BatchAuctionModel{
		Tokens:     tokenModels(tokens),
		Orders:     orderModels(indexedOrders),
		Uniswaps:   ammModels(indexedAmms),
		DefaultFee: s.config.DefaultFee,
	}
	context := &SettlementContext{
		Tokens:      tokens,
		LimitOrders: indexedOrders,
		AmmOrders:   indexedAmms,
	}
	return model, context
}

// send posts the model to the solver. Errors embed the request query, the
// request body and the response body for diagnosis. The api key travels only
// in the request header, which is excluded from the error context by
// construction.
func (s *HTTPSolver) send(ctx context.Context, model *BatchAuctionModel) (*SettledBatchAuctionModel, error) {
	solveURL := *s.base
	solveURL.Path = "/solve"
	query := url.Values{}
	s.config.addToQuery(query)
	solveURL.RawQuery = query.Encode()

	body, err := json.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	s.log.Debug("Sending model to solver", zap.ByteString("body", body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, solveURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-KEY", s.apiKey)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()
	text, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	s.log.Debug("Received solver response", zap.Int("status", res.StatusCode), zap.ByteString("body", text))

	errContext := fmt.Sprintf("request query %s, request body %s, response body %s", solveURL.RawQuery, body, text)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("solver response is not success: status %d, %s", res.StatusCode, errContext)
	}
	var settled SettledBatchAuctionModel
	if err := json.Unmarshal(text, &settled); err != nil {
		return nil, fmt.Errorf("failed to decode response json: %w, %s", err, errContext)
	}
	return &settled, nil
}

// Solve runs one round against the optimizer. A nil settlement without error
// means the optimizer found no improving solution.
func (s *HTTPSolver) Solve(ctx context.Context, liquidity []Liquidity) (*Settlement, error) {
	model, context := s.PrepareModel(liquidity)
	settled, err := s.send(ctx, model)
	if err != nil {
		metrics.IncSolverCallFailure()
		return nil, err
	}
	settlement, err := ConvertSettlement(settled, context)
	if err != nil {
		metrics.IncConversionFailure()
		return nil, err
	}
	if len(settlement.Trades) == 0 {
		return nil, nil
	}
	return settlement, nil
}

// WithTimeLimit returns a copy of the solver with the advisory time limit
// replaced. The engine derives the limit from each round's deadline.
func (s *HTTPSolver) WithTimeLimit(seconds uint32) *HTTPSolver {
	clone := *s
	clone.config.TimeLimit = seconds
	return &clone
}
