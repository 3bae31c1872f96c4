package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bdzhonsoniuk/backend-receipts/internal/common"
)

// Filter narrows the receipt list query. Nil fields are skipped.
type Filter struct {
	DateFrom    *time.Time
	DateTo      *time.Time
	MinAmount   *decimal.Decimal
	MaxAmount   *decimal.Decimal
	PaymentKind *PaymentKind
}

// Repository persists receipts in Postgres. It owns identifier assignment:
// the internal row id comes from the database, the public id is an opaque
// UUID minted on insert.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a receipt repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the receipt and returns it with identifiers assigned.
func (r *Repository) Create(ctx context.Context, rc Receipt) (Receipt, error) {
	itemsJSON, err := json.Marshal(rc.Items)
	if err != nil {
		return Receipt{}, fmt.Errorf("encode receipt items: %w", err)
	}
	publicID := uuid.NewString()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO receipts (public_id, user_id, total_amount, payment_kind, payment_amount, rest_amount, items, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5::numeric, $6::numeric, $7, $8)
		RETURNING id, created_at`,
		publicID,
		rc.UserID,
		rc.TotalAmount.StringFixed(2),
		string(rc.PaymentKind),
		rc.PaymentAmount.StringFixed(2),
		rc.RestAmount.StringFixed(2),
		itemsJSON,
		rc.CreatedAt,
	)
	var id uuid.UUID
	var createdAt time.Time
	if err := row.Scan(&id, &createdAt); err != nil {
		return Receipt{}, fmt.Errorf("insert receipt: %w", err)
	}
	rc.ID = id.String()
	rc.PublicID = publicID
	rc.CreatedAt = createdAt
	return rc, nil
}

// GetByID loads a receipt scoped to its owner. A receipt belonging to another
// user is reported as not found so internal ids leak nothing.
func (r *Repository) GetByID(ctx context.Context, id, userID string) (Receipt, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Receipt{}, common.NewNotFound("receipt not found")
	}
	row := r.pool.QueryRow(ctx, selectColumns+` FROM receipts WHERE id = $1 AND user_id = $2`, id, userID)
	return scanReceipt(row)
}

// GetByPublicID loads a receipt by its opaque public identifier.
func (r *Repository) GetByPublicID(ctx context.Context, publicID string) (Receipt, error) {
	row := r.pool.QueryRow(ctx, selectColumns+` FROM receipts WHERE public_id = $1`, publicID)
	return scanReceipt(row)
}

// List returns the user's receipts matching the filter, newest first, along
// with the total number of matches.
func (r *Repository) List(ctx context.Context, userID string, f Filter, limit, offset int) ([]Receipt, int64, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.DateFrom != nil {
		where = append(where, "created_at >= "+arg(*f.DateFrom))
	}
	if f.DateTo != nil {
		where = append(where, "created_at <= "+arg(*f.DateTo))
	}
	if f.MinAmount != nil {
		where = append(where, "total_amount >= "+arg(f.MinAmount.StringFixed(2))+"::numeric")
	}
	if f.MaxAmount != nil {
		where = append(where, "total_amount <= "+arg(f.MaxAmount.StringFixed(2))+"::numeric")
	}
	if f.PaymentKind != nil {
		where = append(where, "payment_kind = "+arg(string(*f.PaymentKind)))
	}
	condition := strings.Join(where, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM receipts WHERE "+condition, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count receipts: %w", err)
	}

	query := selectColumns + " FROM receipts WHERE " + condition +
		" ORDER BY created_at DESC" +
		" LIMIT " + arg(limit) + " OFFSET " + arg(offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]Receipt, 0, limit)
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, 0, err
		}
		receipts = append(receipts, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate receipts: %w", err)
	}
	return receipts, total, nil
}

const selectColumns = `SELECT id, public_id::text, user_id, total_amount::text, payment_kind, payment_amount::text, rest_amount::text, items, created_at`

func scanReceipt(row pgx.Row) (Receipt, error) {
	var (
		id        uuid.UUID
		userID    uuid.UUID
		rc        Receipt
		total     string
		kind      string
		payment   string
		rest      string
		itemsJSON []byte
	)
	if err := row.Scan(&id, &rc.PublicID, &userID, &total, &kind, &payment, &rest, &itemsJSON, &rc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, common.NewNotFound("receipt not found")
		}
		return Receipt{}, fmt.Errorf("scan receipt: %w", err)
	}
	rc.ID = id.String()
	rc.UserID = userID.String()
	rc.PaymentKind = PaymentKind(kind)

	var err error
	if rc.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return Receipt{}, fmt.Errorf("parse total amount: %w", err)
	}
	if rc.PaymentAmount, err = decimal.NewFromString(payment); err != nil {
		return Receipt{}, fmt.Errorf("parse payment amount: %w", err)
	}
	if rc.RestAmount, err = decimal.NewFromString(rest); err != nil {
		return Receipt{}, fmt.Errorf("parse rest amount: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &rc.Items); err != nil {
		return Receipt{}, fmt.Errorf("decode receipt items: %w", err)
	}
	return rc, nil
}
