package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/order-service/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const orderColumns = `id, order_number, user_id, items, shipping_address, billing_address,
	payment_method, payment_status, status, subtotal, tax, shipping, discount, total,
	notes, created_at, updated_at`

const uniqueViolation = "23505"

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type PostgresRepository struct {
	db *sql.DB
}

func NewOrderRepository(cred *Credentials) (*PostgresRepository, error) {
	db, err := OpenPostgres(cred)
	if err != nil {
		return nil, err
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, order *domain.Order, beforeCommit func(context.Context) error) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	shippingJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}
	billingJSON, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal billing address: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO orders (id, order_number, user_id, items, shipping_address, billing_address,
	              payment_method, payment_status, status, subtotal, tax, shipping, discount, total,
	              notes, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)`

	_, insertErr := tx.ExecContext(ctx, query,
		order.ID,
		order.OrderNumber,
		order.UserID,
		itemsJSON,
		shippingJSON,
		billingJSON,
		order.PaymentMethod,
		order.PaymentStatus,
		order.Status,
		order.Subtotal,
		order.Tax,
		order.Shipping,
		order.Discount,
		order.Total,
		sql.NullString{String: order.Notes, Valid: order.Notes != ""},
		order.CreatedAt)
	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == "orders_order_number_key" {
			return ErrDuplicateOrderNumber
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	order.UpdatedAt = order.CreatedAt

	if err := insertEvent(ctx, tx, domain.NewOrderEvent(domain.EventOrderCreated, order, order.CreatedAt)); err != nil {
		return err
	}

	if beforeCommit != nil {
		if err := beforeCommit(ctx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *PostgresRepository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	return collectOrders(rows)
}

func (r *PostgresRepository) ListOrders(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	} else {
		rows, err = r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at DESC`, status)
	}
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	return collectOrders(rows)
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, from ...domain.OrderStatus) (*domain.Order, error) {
	query := `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`
	args := []interface{}{id, status}
	if len(from) > 0 {
		allowed := make([]string, len(from))
		for i, s := range from {
			allowed[i] = string(s)
		}
		query += ` AND status = ANY($3)`
		args = append(args, pq.Array(allowed))
	}
	query += ` RETURNING ` + orderColumns

	return r.updateOrder(ctx, id, domain.EventOrderStatusChanged, query, args...)
}

func (r *PostgresRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) (*domain.Order, error) {
	query := `UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + orderColumns
	return r.updateOrder(ctx, id, domain.EventOrderPaymentChanged, query, id, status)
}

// updateOrder runs a single-row UPDATE ... RETURNING and records the
// resulting event in the same transaction.
func (r *PostgresRepository) updateOrder(ctx context.Context, id uuid.UUID, eventType domain.OrderEventType, query string, args ...interface{}) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := scanOrder(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check order exists: %w", err)
		}
		if !exists {
			return nil, ErrOrderNotFound
		}
		return nil, ErrStatusConflict
	}
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if err := insertEvent(ctx, tx, domain.NewOrderEvent(eventType, order, order.UpdatedAt)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order update: %w", err)
	}
	return order, nil
}

func (r *PostgresRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM order_outbox WHERE processed_at IS NULL ORDER BY id LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *PostgresRepository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE order_outbox SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event %d: %w", id, err)
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func insertEvent(ctx context.Context, tx *sql.Tx, event domain.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_outbox (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		event.OrderID, string(event.Type), payload)
	if err != nil {
		return fmt.Errorf("insert %s event: %w", event.Type, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order                                domain.Order
		itemsJSON, shippingJSON, billingJSON []byte
		notes                                sql.NullString
	)
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&itemsJSON,
		&shippingJSON,
		&billingJSON,
		&order.PaymentMethod,
		&order.PaymentStatus,
		&order.Status,
		&order.Subtotal,
		&order.Tax,
		&order.Shipping,
		&order.Discount,
		&order.Total,
		&notes,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(shippingJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := json.Unmarshal(billingJSON, &order.BillingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal billing address: %w", err)
	}
	order.Notes = notes.String
	return &order, nil
}

func collectOrders(rows *sql.Rows) ([]*domain.Order, error) {
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}
