package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"erebus/pkg/types"
)

// Store persists transfer records in sqlite. Records are written once
// when a transfer reaches a terminal state and never mutated after.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the history database at path and bootstraps
// the schema
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transfers (
			id TEXT PRIMARY KEY,
			wallet_address TEXT,
			tx_type TEXT,
			amount REAL,
			token TEXT,
			destination TEXT,
			payment_signature TEXT,
			destination_signature TEXT,
			status TEXT,
			timestamp INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_transfers_wallet
			ON transfers (wallet_address, timestamp DESC);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create transfers table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts a transfer record keyed by its transfer id
func (s *Store) Save(ctx context.Context, r types.TransferRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO transfers
		(id, wallet_address, tx_type, amount, token, destination, payment_signature, destination_signature, status, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.WalletAddress, r.TxType, r.Amount, r.Token, r.Destination,
		r.PaymentSignature, r.DestinationSignature, r.Status, r.Timestamp.Unix())
	return err
}

// ByWallet returns a wallet's transfer records, newest first
func (s *Store) ByWallet(ctx context.Context, wallet string, limit int) ([]types.TransferRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, wallet_address, tx_type, amount, token, destination, payment_signature, destination_signature, status, timestamp
		FROM transfers WHERE wallet_address = ? ORDER BY timestamp DESC LIMIT ?
	`, wallet, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.TransferRecord
	for rows.Next() {
		var r types.TransferRecord
		var ts int64
		var destination, paySig, destSig sql.NullString
		if err := rows.Scan(&r.ID, &r.WalletAddress, &r.TxType, &r.Amount, &r.Token,
			&destination, &paySig, &destSig, &r.Status, &ts); err != nil {
			return nil, err
		}
		r.Destination = destination.String
		r.PaymentSignature = paySig.String
		r.DestinationSignature = destSig.String
		r.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
