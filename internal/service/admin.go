package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/soapyfy/internal/model"
	"github.com/mmeshcher/soapyfy/internal/notify"
)

// TransitionPolicy решает, допустима ли смена статуса заказа.
type TransitionPolicy interface {
	Allow(from, to model.OrderStatus) bool
}

// PermissiveTransitions разрешает любой допустимый статус, в том числе возврат назад.
type PermissiveTransitions struct{}

// Allow всегда разрешает переход.
func (PermissiveTransitions) Allow(_, _ model.OrderStatus) bool { return true }

// MonotonicTransitions разрешает только движение вперёд: pending → confirmed → shipped → delivered.
type MonotonicTransitions struct{}

// Allow разрешает переход, если новый статус не раньше текущего.
func (MonotonicTransitions) Allow(from, to model.OrderStatus) bool {
	return to.Rank() >= from.Rank()
}

// Имена политик для конфигурации.
const (
	PolicyPermissive = "permissive"
	PolicyMonotonic  = "monotonic"
)

// ParseTransitionPolicy возвращает политику по имени. Пустое имя означает permissive.
func ParseTransitionPolicy(name string) (TransitionPolicy, error) {
	switch name {
	case "", PolicyPermissive:
		return PermissiveTransitions{}, nil
	case PolicyMonotonic:
		return MonotonicTransitions{}, nil
	default:
		return nil, fmt.Errorf("unknown order status policy %q", name)
	}
}

// ListUsers возвращает зарегистрированных покупателей без хешей паролей.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, persistence(err)
	}
	for i := range users {
		users[i].PasswordHash = nil
	}
	return users, nil
}

// ListOrders возвращает все заказы, новые первыми.
func (s *Service) ListOrders(ctx context.Context) ([]model.Order, error) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, persistence(err)
	}
	return orders, nil
}

// UpdateOrderStatus меняет статус заказа. Изменение применяется, только если версия
// заказа в хранилище равна expectedVersion; при нулевой expectedVersion берётся
// версия, прочитанная перед обновлением.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus, expectedVersion int64) (*model.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, persistence(err)
	}

	if expectedVersion == 0 {
		expectedVersion = o.Version
	}
	if expectedVersion != o.Version {
		return nil, ErrVersionConflict
	}
	if !s.policy.Allow(o.Status, status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrTransitionRejected, o.Status, status)
	}

	version, err := s.repo.UpdateOrderStatus(ctx, id, status, expectedVersion)
	if err != nil {
		return nil, persistence(err)
	}

	s.logger.Info("order status changed",
		zap.String("order", id),
		zap.String("from", string(o.Status)),
		zap.String("to", string(status)),
	)

	o.Status = status
	o.Version = version
	s.publish(ctx, notify.EventOrderStatusChanged, o)

	return o, nil
}

// DeleteOrder удаляет заказ.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	if err := s.repo.DeleteOrder(ctx, id); err != nil {
		return persistence(err)
	}

	s.logger.Info("order deleted", zap.String("order", id))
	s.publish(ctx, notify.EventOrderDeleted, &model.Order{ID: id})
	return nil
}
