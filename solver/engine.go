package solver

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/Sajjad-Khoshdooni/settlement-node/metrics"
)

const (
	// SolvingTimeBuffer is subtracted from the driver's deadline before it
	// is communicated to the optimizer, reserving time for settlement
	// conversion, access list estimation and submission after the optimizer
	// returns.
	SolvingTimeBuffer = 5 * time.Second

	solutionCleanupInterval = time.Minute
	receiptPollInterval     = time.Second
	receiptPollMaxElapsed   = 2 * time.Minute
)

// TransactionSubmitter owns transaction encoding, signing and broadcast,
// which are outside this node. Prepare returns the unsigned candidate used
// for access list estimation.
type TransactionSubmitter interface {
	Prepare(settlement *Settlement) (SettlementTransaction, error)
	Submit(ctx context.Context, settlement *Settlement, accessList types.AccessList) (common.Hash, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// SettlementNotifier publishes settlement summaries for observers.
type SettlementNotifier interface {
	NotifySettlement(ctx context.Context, event *SettlementEvent) error
}

// Storage persists solving rounds for audit.
type Storage interface {
	InsertSolution(ctx context.Context, record *SolutionRecord) error
	MarkSettled(ctx context.Context, solutionID uint64, txHash common.Hash) error
}

type solution struct {
	settlement *Settlement
	accessList types.AccessList
}

// Engine is the settlement execution boundary served to the driver. Solve
// runs one round and retains the result under a solution id; Settle submits
// a previously returned solution on chain.
type Engine struct {
	log       *zap.Logger
	solver    *HTTPSolver
	estimator AccessListEstimating
	submitter TransactionSubmitter
	notifier  SettlementNotifier
	store     Storage
	solutions *gocache.Cache
	nextID    atomic.Uint64
}

func NewEngine(
	log *zap.Logger, solver *HTTPSolver, estimator AccessListEstimating, submitter TransactionSubmitter,
	notifier SettlementNotifier, store Storage, solutionValidity time.Duration,
) *Engine {
	return &Engine{
		log:       log.Named("engine"),
		solver:    solver,
		estimator: estimator,
		submitter: submitter,
		notifier:  notifier,
		store:     store,
		solutions: gocache.New(solutionValidity, solutionCleanupInterval),
	}
}

// Solve runs one solving round over the liquidity snapshot. The deadline is
// advisory: its remainder, less SolvingTimeBuffer, becomes the optimizer's
// time limit. Returns ErrNoSolution when the optimizer finds no improving
// solution.
func (e *Engine) Solve(ctx context.Context, liquidity []Liquidity, deadline time.Time) (solutionID uint64, err error) {
	startAt := time.Now()
	defer func() {
		metrics.RecordSolveDuration(time.Since(startAt).Milliseconds())
		if err != nil {
			metrics.IncSolveFailure()
		}
	}()
	metrics.IncRoundsTotal()

	timeLimit := time.Until(deadline) - SolvingTimeBuffer
	if timeLimit <= 0 {
		return 0, fmt.Errorf("deadline %s leaves no time to solve", deadline)
	}
	logger := e.log.With(zap.Duration("time_limit", timeLimit))

	// Round up so a sub-second remainder still grants a one second budget.
	seconds := uint32((timeLimit + time.Second - 1) / time.Second)
	settlement, err := e.solver.WithTimeLimit(seconds).Solve(ctx, liquidity)
	if err != nil {
		logger.Error("Solver round failed", zap.Error(err))
		return 0, err
	}
	if settlement == nil {
		logger.Info("Solver found no improving solution")
		metrics.IncRoundsNoSolution()
		return 0, ErrNoSolution
	}

	// Access lists are a gas optimization: estimation failure degrades the
	// settlement, it does not invalidate it.
	var accessList types.AccessList
	candidate, err := e.submitter.Prepare(settlement)
	if err != nil {
		logger.Warn("Failed to prepare candidate transaction", zap.Error(err))
	} else if list, err := e.estimator.EstimateAccessList(ctx, candidate); err != nil {
		logger.Warn("Failed to estimate access list", zap.Error(err))
	} else {
		accessList = list
	}

	solutionID = e.nextID.Add(1)
	e.solutions.SetDefault(solutionKey(solutionID), &solution{settlement: settlement, accessList: accessList})
	logger.Info("Solved auction",
		zap.Uint64("solution_id", solutionID),
		zap.Int("trades", len(settlement.Trades)),
		zap.Int("interactions", len(settlement.Interactions)),
		zap.Int("access_list_entries", len(accessList)),
	)

	if e.store != nil {
		if err := e.store.InsertSolution(ctx, NewSolutionRecord(solutionID, settlement, accessList)); err != nil {
			logger.Error("Failed to persist solution", zap.Error(err))
		}
	}
	return solutionID, nil
}

// Settle submits the identified solution on chain and waits for its receipt.
// Exactly one transaction is submitted per call.
func (e *Engine) Settle(ctx context.Context, solutionID uint64) (receipt *types.Receipt, err error) {
	startAt := time.Now()
	defer func() {
		metrics.RecordSettleDuration(time.Since(startAt).Milliseconds())
		if err != nil {
			metrics.IncSettleFailure()
		}
	}()

	cached, ok := e.solutions.Get(solutionKey(solutionID))
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSolution, solutionID)
	}
	sol := cached.(*solution)
	logger := e.log.With(zap.Uint64("solution_id", solutionID))

	txHash, err := e.submitter.Submit(ctx, sol.settlement, sol.accessList)
	if err != nil {
		logger.Error("Failed to submit settlement", zap.Error(err))
		return nil, err
	}
	metrics.IncSettleSubmissions()
	// A solution settles at most once.
	e.solutions.Delete(solutionKey(solutionID))
	logger.Info("Submitted settlement", zap.String("tx", txHash.Hex()))

	receipt, err = e.waitForReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}

	if e.store != nil {
		if err := e.store.MarkSettled(ctx, solutionID, txHash); err != nil {
			logger.Error("Failed to mark solution settled", zap.Error(err))
		}
	}
	if e.notifier != nil {
		if err := e.notifier.NotifySettlement(ctx, NewSettlementEvent(solutionID, sol.settlement, txHash)); err != nil {
			logger.Warn("Failed to notify settlement", zap.Error(err))
		}
	}
	return receipt, nil
}

// waitForReceipt polls until the submitted transaction is mined. Polling a
// pending transaction is not a retry of a failed call; the no-retry rule for
// solver and simulator calls does not apply here.
func (e *Engine) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	back := backoff.NewExponentialBackOff()
	back.InitialInterval = receiptPollInterval
	back.MaxElapsedTime = receiptPollMaxElapsed

	var receipt *types.Receipt
	err := backoff.Retry(func() error {
		r, err := e.submitter.TransactionReceipt(ctx, txHash)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	}, backoff.WithContext(back, ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipt for %s: %w", txHash.Hex(), err)
	}
	return receipt, nil
}

func solutionKey(id uint64) string {
	return strconv.FormatUint(id, 10)
}
