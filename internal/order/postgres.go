package order

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Proton-105/storefront-bot/internal/domain"
)

// Migrations holds the ledger schema, applied with database.Migrator.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the root of Migrations.
const MigrationsDir = "migrations"

const uniqueViolation = pq.ErrorCode("23505")

const orderColumns = `id, kind, buyer_id, buyer_name, category, offer_key, label, price, target, status, created_at, resolved_at, handled_by`

// PostgresLedger implements Ledger on the orders table.
type PostgresLedger struct {
	db  *sql.DB
	log *slog.Logger
}

var _ Ledger = (*PostgresLedger)(nil)

// NewPostgresLedger creates a SQL-backed ledger. The schema must already be migrated.
func NewPostgresLedger(db *sql.DB, log *slog.Logger) *PostgresLedger {
	if log == nil {
		log = slog.Default()
	}

	return &PostgresLedger{
		db:  db,
		log: log,
	}
}

// HealthCheck pings the database.
func (l *PostgresLedger) HealthCheck(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

func (l *PostgresLedger) Create(ctx context.Context, o domain.Order) error {
	if err := validateNew(o); err != nil {
		return err
	}

	const query = `
		INSERT INTO orders (id, kind, buyer_id, buyer_name, category, offer_key, label, price, target, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if _, err := l.db.ExecContext(
		ctx,
		query,
		o.ID,
		string(o.Kind),
		o.BuyerID,
		o.BuyerName,
		string(o.Category),
		o.Key,
		o.Label,
		o.Price,
		o.Target,
		string(o.Status),
		o.CreatedAt,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateID
		}

		l.log.Error("failed to insert order", slog.String("order_id", o.ID), slog.Any("error", err))
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (l *PostgresLedger) Get(ctx context.Context, id string) (domain.Order, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	return o, nil
}

func (l *PostgresLedger) Resolve(ctx context.Context, id string, to domain.OrderStatus, handledBy int64, at time.Time) (domain.Order, error) {
	if err := validateTerminal(to); err != nil {
		return domain.Order{}, err
	}

	query := `
		UPDATE orders
		SET status = $2, handled_by = $3, resolved_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + orderColumns

	o, err := scanOrder(l.db.QueryRowContext(ctx, query, id, string(to), handledBy, at))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		l.log.Error("failed to resolve order", slog.String("order_id", id), slog.Any("error", err))
		return domain.Order{}, fmt.Errorf("resolve order: %w", err)
	}

	// lost the race or never existed
	current, getErr := l.Get(ctx, id)
	if getErr != nil {
		return domain.Order{}, getErr
	}
	return current, ErrNotPending
}

func (l *PostgresLedger) Reopen(ctx context.Context, id string, from domain.OrderStatus) error {
	if err := validateTerminal(from); err != nil {
		return err
	}

	const query = `
		UPDATE orders
		SET status = 'pending', handled_by = NULL, resolved_at = NULL
		WHERE id = $1 AND status = $2
	`

	res, err := l.db.ExecContext(ctx, query, id, string(from))
	if err != nil {
		return fmt.Errorf("reopen order: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reopen order: %w", err)
	}
	if n == 1 {
		return nil
	}

	if _, getErr := l.Get(ctx, id); getErr != nil {
		return getErr
	}
	return ErrNotPending
}

func (l *PostgresLedger) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at, id
		LIMIT $2
	`

	rows, err := l.db.QueryContext(ctx, query, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending order: %w", err)
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o          domain.Order
		kind       string
		category   string
		status     string
		resolvedAt sql.NullTime
		handledBy  sql.NullInt64
	)

	if err := row.Scan(
		&o.ID,
		&kind,
		&o.BuyerID,
		&o.BuyerName,
		&category,
		&o.Key,
		&o.Label,
		&o.Price,
		&o.Target,
		&status,
		&o.CreatedAt,
		&resolvedAt,
		&handledBy,
	); err != nil {
		return domain.Order{}, err
	}

	o.Kind = domain.OrderKind(kind)
	o.Category = domain.Category(category)
	o.Status = domain.OrderStatus(status)
	if resolvedAt.Valid {
		o.ResolvedAt = resolvedAt.Time
	}
	if handledBy.Valid {
		o.HandledBy = handledBy.Int64
	}
	return o, nil
}
