package repository

import (
	"context"
	"fmt"
	"time"

	"lucky-draw/internal/model"
)

const transactionColumns = `id, user_id, type, amount, description, related_draw_id, created_at`

// CreateTransaction appends a ledger entry.
func (s *PostgresStore) CreateTransaction(ctx context.Context, tx *model.Transaction) (*model.Transaction, error) {
	const query = `
		INSERT INTO transactions (user_id, type, amount, description, related_draw_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + transactionColumns

	at := tx.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}

	var out model.Transaction
	err := s.q.QueryRow(ctx, query, tx.UserID, tx.Type, tx.Amount, tx.Description, tx.RelatedDrawID, at).Scan(
		&out.ID,
		&out.UserID,
		&out.Type,
		&out.Amount,
		&out.Description,
		&out.RelatedDrawID,
		&out.CreatedAt,
	)
	if err != nil {
		return nil, storeErr("create transaction", err)
	}
	return &out, nil
}

// ListUserTransactions retrieves transactions for a user, ordered by creation time (newest first).
func (s *PostgresStore) ListUserTransactions(ctx context.Context, userID string, limit int) ([]*model.Transaction, error) {
	// LIMIT NULL means no limit.
	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}

	const query = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.q.Query(ctx, query, userID, limitArg)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		var tx model.Transaction
		err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&tx.Type,
			&tx.Amount,
			&tx.Description,
			&tx.RelatedDrawID,
			&tx.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate transactions", err)
	}

	return transactions, nil
}
