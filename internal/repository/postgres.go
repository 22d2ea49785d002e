package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/soapyfy/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const orderColumns = `id, user_id, items, subtotal, shipping, taxes, total, payment_method, guest_info, status, version, created_at`

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
	opts Options
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string, opts Options) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool, opts: opts}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return withRetry(ctx, r.opts, isTransientPgError, fn)
}

func isTransientPgError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return pgconn.SafeToRetry(err) || isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, email string, passwordHash []byte) (*model.User, error) {
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
	}

	err := r.withRetry(ctx, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3) RETURNING created_at`,
			u.ID, email, passwordHash,
		).Scan(&u.CreatedAt)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по точному совпадению email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := r.withRetry(ctx, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx,
			`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
			email,
		).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// ListUsers возвращает всех пользователей, новые первыми.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.withRetry(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, email, created_at FROM users ORDER BY created_at DESC`,
		)
		if err != nil {
			return fmt.Errorf("select users: %w", err)
		}
		defer rows.Close()

		users = users[:0]
		for rows.Next() {
			var u model.User
			if err := rows.Scan(&u.ID, &u.Email, &u.CreatedAt); err != nil {
				return fmt.Errorf("scan user: %w", err)
			}
			users = append(users, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CreateOrder сохраняет заказ и возвращает присвоенный идентификатор.
// Повтор вставки с тем же идентификатором не создаёт дубликат.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (string, error) {
	id := uuid.NewString()

	items, err := json.Marshal(o.Items)
	if err != nil {
		return "", fmt.Errorf("encode items: %w", err)
	}

	var guestInfo []byte
	var guestEmail *string
	if o.GuestInfo != nil {
		guestInfo, err = json.Marshal(o.GuestInfo)
		if err != nil {
			return "", fmt.Errorf("encode guest info: %w", err)
		}
		email := o.GuestInfo.Email
		guestEmail = &email
	}

	err = r.withRetry(ctx, func(ctx context.Context) error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO orders (id, user_id, items, subtotal, shipping, taxes, total, payment_method, guest_info, guest_email, status, version, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 ON CONFLICT (id) DO NOTHING`,
			id, nullString(o.UserID), items,
			toCents(o.Subtotal), toCents(o.Shipping), toCents(o.Taxes), toCents(o.Total),
			string(o.PaymentMethod), guestInfo, guestEmail,
			string(o.Status), o.Version, o.CreatedAt,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert order: %w", err)
	}

	return id, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var o *model.Order
	err := r.withRetry(ctx, func(ctx context.Context) error {
		var err error
		o, err = scanOrder(r.pool.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// ListOrders возвращает все заказы, новые первыми.
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`,
	)
}

// ListOrdersByEmail возвращает заказы покупателя по email, новые первыми.
func (r *PostgresRepository) ListOrdersByEmail(ctx context.Context, email string) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE guest_email = $1 ORDER BY created_at DESC`,
		email,
	)
}

func (r *PostgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	var orders []model.Order
	err := r.withRetry(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("select orders: %w", err)
		}
		defer rows.Close()

		orders = orders[:0]
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return fmt.Errorf("scan order: %w", err)
			}
			orders = append(orders, *o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus меняет статус, если версия заказа совпадает с ожидаемой.
// Возвращает новую версию.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus, expectedVersion int64) (int64, error) {
	var version int64
	err := r.withRetry(ctx, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx,
			`UPDATE orders SET status = $2, version = version + 1
			 WHERE id = $1 AND version = $3
			 RETURNING version`,
			id, string(status), expectedVersion,
		).Scan(&version)
	})
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("update order: %w", err)
	}

	var exists bool
	err = r.withRetry(ctx, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id,
		).Scan(&exists)
	})
	if err != nil {
		return 0, fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return 0, ErrOrderNotFound
	}
	return 0, ErrVersionConflict
}

// DeleteOrder удаляет заказ.
func (r *PostgresRepository) DeleteOrder(ctx context.Context, id string) error {
	var affected int64
	err := r.withRetry(ctx, func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o             model.Order
		userID        *string
		items         []byte
		guestInfo     []byte
		paymentMethod string
		status        string
		subtotal      int64
		shipping      int64
		taxes         int64
		total         int64
	)

	err := row.Scan(&o.ID, &userID, &items, &subtotal, &shipping, &taxes, &total,
		&paymentMethod, &guestInfo, &status, &o.Version, &o.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if len(guestInfo) > 0 {
		var info model.ShippingInfo
		if err := json.Unmarshal(guestInfo, &info); err != nil {
			return nil, fmt.Errorf("decode guest info: %w", err)
		}
		o.GuestInfo = &info
	}
	if userID != nil {
		o.UserID = *userID
	}

	o.Subtotal = fromCents(subtotal)
	o.Shipping = fromCents(shipping)
	o.Taxes = fromCents(taxes)
	o.Total = fromCents(total)
	o.PaymentMethod = model.PaymentMethod(paymentMethod)
	o.Status = model.OrderStatus(status)

	return &o, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
