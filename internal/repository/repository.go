// Package repository содержит реализации хранилища пользователей и заказов:
// PostgreSQL и документное хранилище MongoDB.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
)

var (
	// ErrUserExists возвращается при попытке создать пользователя с уже существующим email.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrVersionConflict возвращается, если заказ изменён после чтения.
	ErrVersionConflict = errors.New("order version conflict")
)

// Options параметры обращения к хранилищу.
type Options struct {
	// Timeout ограничивает одну попытку запроса.
	Timeout time.Duration
	// Retries число повторов временных ошибок.
	Retries uint64
	// BaseDelay начальная задержка экспоненциального ожидания.
	BaseDelay time.Duration
	// MaxDelay верхняя граница задержки между попытками.
	MaxDelay time.Duration
}

// DefaultOptions возвращает параметры по умолчанию.
func DefaultOptions() Options {
	return Options{
		Timeout:   5 * time.Second,
		Retries:   3,
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  2 * time.Second,
	}
}

// IsMongoURI сообщает, указывает ли строка подключения на MongoDB.
func IsMongoURI(uri string) bool {
	return strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://")
}

// withRetry выполняет fn с таймаутом на попытку и повторяет временные ошибки
// с экспоненциальной задержкой.
func withRetry(ctx context.Context, opts Options, transient func(error) bool, fn func(ctx context.Context) error) error {
	b := retry.NewExponential(opts.BaseDelay)
	if opts.MaxDelay > 0 {
		b = retry.WithCappedDuration(opts.MaxDelay, b)
	}
	b = retry.WithMaxRetries(opts.Retries, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		callCtx := ctx
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}

		err := fn(callCtx)
		if err == nil {
			return nil
		}

		// Отмена или истечение внешнего контекста не повторяются
		if ctx.Err() != nil {
			return err
		}

		if errors.Is(err, context.DeadlineExceeded) || transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}
