// Package httpserver exposes the settlement engine to the driver over HTTP.
// The auction wire encoding is owned by the driver layer; this package only
// consumes it and hands plain domain values to the engine.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/Sajjad-Khoshdooni/settlement-node/solver"
)

var (
	errInvalidLiquidity    = errors.New("liquidity entry must be exactly one of order, pool")
	errMissingOrderAmounts = errors.New("order requires sellAmount and buyAmount")
	errMissingPoolReserves = errors.New("pool requires reserveA and reserveB")
)

// Engine is the settlement execution contract served by this package.
type Engine interface {
	Solve(ctx context.Context, liquidity []solver.Liquidity, deadline time.Time) (uint64, error)
	Settle(ctx context.Context, solutionID uint64) (*types.Receipt, error)
}

// SettlementHandlers supplies the settlement-handling capability attached to
// every decoded liquidity entity. The wire format cannot carry behavior, so
// callers inject it per entity class.
type SettlementHandlers interface {
	ForOrder() solver.LimitOrderSettlementHandler
	ForPool(pair common.Address) solver.AmmSettlementHandler
}

type Server struct {
	log      *zap.Logger
	engine   Engine
	handlers SettlementHandlers
}

func New(log *zap.Logger, engine Engine, handlers SettlementHandlers) *Server {
	return &Server{
		log:      log.Named("http"),
		engine:   engine,
		handlers: handlers,
	}
}

// Handler returns the http handler serving /solve and /settle.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/solve", s.handleSolve)
	mux.HandleFunc("/settle", s.handleSettle)
	return mux
}

type solveRequest struct {
	Deadline  time.Time        `json:"deadline"`
	Liquidity []liquidityEntry `json:"liquidity"`
}

type liquidityEntry struct {
	Order *orderEntry `json:"order,omitempty"`
	Pool  *poolEntry  `json:"pool,omitempty"`
}

type orderEntry struct {
	SellToken         common.Address        `json:"sellToken"`
	BuyToken          common.Address        `json:"buyToken"`
	SellAmount        *math.HexOrDecimal256 `json:"sellAmount"`
	BuyAmount         *math.HexOrDecimal256 `json:"buyAmount"`
	Kind              string                `json:"kind"`
	PartiallyFillable bool                  `json:"partiallyFillable"`
}

type poolEntry struct {
	Address        common.Address        `json:"address"`
	TokenA         common.Address        `json:"tokenA"`
	TokenB         common.Address        `json:"tokenB"`
	ReserveA       *math.HexOrDecimal256 `json:"reserveA"`
	ReserveB       *math.HexOrDecimal256 `json:"reserveB"`
	FeeNumerator   int64                 `json:"feeNumerator"`
	FeeDenominator int64                 `json:"feeDenominator"`
}

type solveResponse struct {
	SolutionID *uint64 `json:"solutionId"`
}

type settleRequest struct {
	SolutionID uint64 `json:"solutionId"`
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	liquidity, err := s.decodeLiquidity(req.Liquidity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	solutionID, err := s.engine.Solve(r.Context(), liquidity, req.Deadline)
	if errors.Is(err, solver.ErrNoSolution) {
		writeJSON(w, http.StatusOK, solveResponse{})
		return
	}
	if err != nil {
		s.log.Error("Solve failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, solveResponse{SolutionID: &solutionID})
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := s.engine.Settle(r.Context(), req.SolutionID)
	if errors.Is(err, solver.ErrUnknownSolution) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.log.Error("Settle failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) decodeLiquidity(entries []liquidityEntry) ([]solver.Liquidity, error) {
	liquidity := make([]solver.Liquidity, 0, len(entries))
	for _, entry := range entries {
		switch {
		case entry.Order != nil && entry.Pool == nil:
			if entry.Order.SellAmount == nil || entry.Order.BuyAmount == nil {
				return nil, errMissingOrderAmounts
			}
			kind := solver.KindSell
			if entry.Order.Kind == "buy" {
				kind = solver.KindBuy
			}
			liquidity = append(liquidity, solver.Liquidity{Limit: &solver.LimitOrder{
				SellToken:          entry.Order.SellToken,
				BuyToken:           entry.Order.BuyToken,
				SellAmount:         (*big.Int)(entry.Order.SellAmount),
				BuyAmount:          (*big.Int)(entry.Order.BuyAmount),
				Kind:               kind,
				PartiallyFillable:  entry.Order.PartiallyFillable,
				SettlementHandling: s.handlers.ForOrder(),
			}})
		case entry.Pool != nil && entry.Order == nil:
			if entry.Pool.ReserveA == nil || entry.Pool.ReserveB == nil {
				return nil, errMissingPoolReserves
			}
			pair, err := solver.NewTokenPair(entry.Pool.TokenA, entry.Pool.TokenB)
			if err != nil {
				return nil, err
			}
			// Reserves follow the pair's canonical token order.
			reserves := [2]*big.Int{(*big.Int)(entry.Pool.ReserveA), (*big.Int)(entry.Pool.ReserveB)}
			if first, _ := pair.Get(); first != entry.Pool.TokenA {
				reserves[0], reserves[1] = reserves[1], reserves[0]
			}
			denominator := entry.Pool.FeeDenominator
			if denominator == 0 {
				denominator = 1
			}
			liquidity = append(liquidity, solver.Liquidity{Amm: &solver.AmmOrder{
				Tokens:             pair,
				Reserves:           reserves,
				Fee:                big.NewRat(entry.Pool.FeeNumerator, denominator),
				SettlementHandling: s.handlers.ForPool(entry.Pool.Address),
			}})
		default:
			return nil, errInvalidLiquidity
		}
	}
	return liquidity, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
