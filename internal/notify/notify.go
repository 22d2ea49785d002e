// Package notify публикует события заказов во внешние системы.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/mmeshcher/soapyfy/internal/model"
)

// Типы событий заказа.
const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderDeleted       = "order.deleted"
)

// EventItem позиция заказа в событии.
type EventItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// OrderEvent описывает событие заказа.
type OrderEvent struct {
	Type       string      `json:"type"`
	OrderID    string      `json:"orderId"`
	Status     string      `json:"status,omitempty"`
	BuyerEmail string      `json:"buyerEmail,omitempty"`
	Total      string      `json:"total,omitempty"`
	Items      []EventItem `json:"items,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
}

// NewOrderEvent создаёт событие по заказу.
func NewOrderEvent(eventType string, o *model.Order, at time.Time) OrderEvent {
	e := OrderEvent{
		Type:       eventType,
		OrderID:    o.ID,
		Status:     string(o.Status),
		BuyerEmail: o.BuyerEmail(),
		OccurredAt: at.UTC(),
	}
	if eventType == EventOrderPlaced {
		e.Total = o.Total.StringFixed(2)
		e.Items = make([]EventItem, 0, len(o.Items))
		for _, it := range o.Items {
			e.Items = append(e.Items, EventItem{ProductID: it.ID, Quantity: it.Quantity, Price: it.Price})
		}
	}
	return e
}

// Publisher доставляет события заказов.
type Publisher interface {
	Publish(ctx context.Context, e OrderEvent) error
	Close() error
}

// Nop ничего не публикует.
type Nop struct{}

// Publish ничего не делает.
func (Nop) Publish(context.Context, OrderEvent) error { return nil }

// Close ничего не делает.
func (Nop) Close() error { return nil }

// Multi рассылает событие всем издателям и объединяет ошибки.
type Multi []Publisher

// Publish публикует событие во все издатели, даже если часть из них вернула ошибку.
func (m Multi) Publish(ctx context.Context, e OrderEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close закрывает все издатели.
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
