// Package pricing вычисляет суммы корзины: подытог, доставку, налоги и итог.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/soapyfy/internal/model"
)

// ErrInvalidPrice возвращается, если строку цены не удалось разобрать.
var ErrInvalidPrice = errors.New("invalid price")

// Config содержит параметры расчёта.
type Config struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	TaxRate               decimal.Decimal
	CurrencyLabel         string
}

// DefaultConfig возвращает параметры витрины: бесплатная доставка от 30,
// фиксированная доставка 5 и ставка налогов Квебека (TPS + TVQ).
func DefaultConfig() Config {
	return Config{
		FreeShippingThreshold: decimal.RequireFromString("30.00"),
		FlatShippingFee:       decimal.RequireFromString("5.00"),
		TaxRate:               decimal.RequireFromString("0.14975"),
		CurrencyLabel:         "CAD",
	}
}

// Engine выполняет детерминированные расчёты сумм. Входные данные не изменяются.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine создаёт движок расчёта. Некорректные цены в корзине журналируются через logger.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Config возвращает параметры движка.
func (e *Engine) Config() Config {
	return e.cfg
}

// ParsePrice разбирает отображаемую цену вида "$5.00 CAD" или "5,00 $".
func ParsePrice(s string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-':
			return decimal.Zero, fmt.Errorf("%w: negative amount %q", ErrInvalidPrice, s)
		}
	}

	raw := b.String()
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: no digits in %q", ErrInvalidPrice, s)
	}

	raw, ok := normalizeSeparators(raw)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: ambiguous separators in %q", ErrInvalidPrice, s)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	return d, nil
}

// normalizeSeparators приводит число к виду с точкой в качестве десятичного разделителя.
// При наличии обоих разделителей десятичным считается последний. Одиночная запятая
// считается десятичной, только если за ней одна или две цифры; "1,000" отвергается.
func normalizeSeparators(raw string) (string, bool) {
	dot := strings.LastIndexByte(raw, '.')
	comma := strings.LastIndexByte(raw, ',')

	switch {
	case comma < 0:
		return raw, true
	case dot < 0:
		if strings.Count(raw, ",") != 1 {
			return "", false
		}
		if n := len(raw) - comma - 1; n < 1 || n > 2 {
			return "", false
		}
		return strings.Replace(raw, ",", ".", 1), true
	case dot > comma:
		return strings.ReplaceAll(raw, ",", ""), true
	default:
		return strings.Replace(strings.ReplaceAll(raw, ".", ""), ",", ".", 1), strings.Count(raw, ",") == 1
	}
}

// Subtotal суммирует цену, умноженную на количество, по всем позициям.
// Неразбираемая цена считается нулевой.
func (e *Engine) Subtotal(items []model.CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		price, err := ParsePrice(it.Price)
		if err != nil {
			e.logger.Warn("unparsable cart item price",
				zap.String("item", it.ID),
				zap.String("price", it.Price),
				zap.Error(err),
			)
			continue
		}
		sum = sum.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// Shipping возвращает стоимость доставки: ноль от порога, иначе фиксированный тариф.
func (e *Engine) Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(e.cfg.FreeShippingThreshold) {
		return decimal.Zero
	}
	return e.cfg.FlatShippingFee
}

// RemainingForFreeShipping возвращает сумму, которой не хватает до бесплатной доставки.
// Ноль, если порог уже достигнут.
func (e *Engine) RemainingForFreeShipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(e.cfg.FreeShippingThreshold) {
		return decimal.Zero
	}
	return e.cfg.FreeShippingThreshold.Sub(subtotal)
}

// Taxes возвращает налоги с подытога, округлённые до центов.
func (e *Engine) Taxes(subtotal decimal.Decimal) decimal.Decimal {
	return round2(subtotal.Mul(e.cfg.TaxRate))
}

// Total складывает суммы и округляет результат до центов.
func Total(subtotal, shipping, taxes decimal.Decimal) decimal.Decimal {
	return round2(subtotal.Add(shipping).Add(taxes))
}

// Totals вычисляет все суммы для списка позиций.
func (e *Engine) Totals(items []model.CartItem) model.Totals {
	subtotal := e.Subtotal(items)
	shipping := e.Shipping(subtotal)
	taxes := e.Taxes(subtotal)

	count := 0
	for _, it := range items {
		if it.Quantity > 0 {
			count += it.Quantity
		}
	}

	return model.Totals{
		Subtotal:              subtotal,
		Shipping:              shipping,
		Taxes:                 taxes,
		Total:                 Total(subtotal, shipping, taxes),
		FreeShippingRemaining: e.RemainingForFreeShipping(subtotal),
		ItemCount:             count,
	}
}

// Format форматирует сумму с двумя знаками после запятой и меткой валюты.
func (e *Engine) Format(amount decimal.Decimal) string {
	return amount.StringFixed(2) + " " + e.cfg.CurrencyLabel
}

// round2 округляет половину вверх; суммы корзины неотрицательны.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
