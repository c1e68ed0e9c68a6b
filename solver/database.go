package solver

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// SolutionRecord is one solving round persisted for audit.
type SolutionRecord struct {
	SolutionID        uint64       `db:"solution_id"`
	Trades            int          `db:"trades"`
	Interactions      int          `db:"interactions"`
	AccessListEntries int          `db:"access_list_entries"`
	Prices            []byte       `db:"prices"`
	SolvedAt          time.Time    `db:"solved_at"`
	SettledAt         sql.NullTime `db:"settled_at"`
	TxHash            []byte       `db:"tx_hash"`
}

func NewSolutionRecord(solutionID uint64, settlement *Settlement, accessList types.AccessList) *SolutionRecord {
	prices := make(map[string]string, len(settlement.ClearingPrices))
	for token, price := range settlement.ClearingPrices {
		prices[token.Hex()] = price.String()
	}
	// Price map always marshals; keys and values are plain strings.
	pricesJSON, _ := json.Marshal(prices)
	return &SolutionRecord{
		SolutionID:        solutionID,
		Trades:            len(settlement.Trades),
		Interactions:      len(settlement.Interactions),
		AccessListEntries: len(accessList),
		Prices:            pricesJSON,
		SolvedAt:          time.Now().UTC(),
	}
}

var insertSolutionQuery = `
INSERT INTO solution (solution_id, trades, interactions, access_list_entries, prices, solved_at)
VALUES (:solution_id, :trades, :interactions, :access_list_entries, :prices, :solved_at)
ON CONFLICT (solution_id) DO NOTHING`

var markSettledQuery = `
UPDATE solution
SET settled_at = $1, tx_hash = $2
WHERE solution_id = $3`

type DBBackend struct {
	db *sqlx.DB
}

func NewDBBackend(postgresDSN string) (*DBBackend, error) {
	db, err := sqlx.Connect("postgres", postgresDSN)
	if err != nil {
		return nil, err
	}
	return &DBBackend{db: db}, nil
}

func (b *DBBackend) Close() error {
	return b.db.Close()
}

func (b *DBBackend) InsertSolution(ctx context.Context, record *SolutionRecord) error {
	_, err := b.db.NamedExecContext(ctx, insertSolutionQuery, record)
	return err
}

func (b *DBBackend) MarkSettled(ctx context.Context, solutionID uint64, txHash common.Hash) error {
	_, err := b.db.ExecContext(ctx, markSettledQuery, time.Now().UTC(), txHash.Bytes(), solutionID)
	return err
}
