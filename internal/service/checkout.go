package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmeshcher/soapyfy/internal/checkout"
	"github.com/mmeshcher/soapyfy/internal/model"
	"github.com/mmeshcher/soapyfy/internal/notify"
	"github.com/mmeshcher/soapyfy/internal/session"
)

// PlaceOrder оформляет заказ из корзины сессии.
//
// Порядок: проверка формы, вход или регистрация (если выбраны), сохранение заказа
// и только затем очистка корзины. Если хранилище не приняло заказ, корзина
// остаётся нетронутой и возвращается ErrPersistence.
func (s *Service) PlaceOrder(ctx context.Context, sid string, req checkout.Request) (*model.Order, error) {
	st, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return nil, err
	}

	authenticated := st.User != nil
	if errs := checkout.Validate(req, authenticated); errs != nil {
		return nil, errs
	}
	if st.Cart.Len() == 0 {
		return nil, ErrEmptyCart
	}

	if req.NeedsAuth(authenticated) {
		account, err := s.checkoutAuth(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := s.signIn(ctx, sid, account); err != nil {
			return nil, err
		}
	}

	var order model.Order
	_, err = s.sessions.Update(ctx, sid, func(st *session.State) error {
		// Учётная запись могла смениться между чтением сессии и блокировкой.
		if errs := checkout.Validate(req, st.User != nil); errs != nil {
			return errs
		}
		account := st.User.User()

		items := st.Cart.Items()
		if len(items) == 0 {
			return ErrEmptyCart
		}

		order = checkout.Build(items, st.Cart.Totals(s.pricing), checkout.Buyer(req, account), account, req.PaymentMethod, s.now())

		id, err := s.repo.CreateOrder(ctx, &order)
		if err != nil {
			return persistence(err)
		}
		order.ID = id

		st.Cart.Clear()
		return nil
	})
	if err != nil {
		if order.ID == "" {
			s.logger.Warn("order not placed", zap.String("session", sid), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("order", order.ID),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("items", len(order.Items)),
	)
	s.publish(ctx, notify.EventOrderPlaced, &order)

	return &order, nil
}

func (s *Service) checkoutAuth(ctx context.Context, req checkout.Request) (*model.User, error) {
	if req.Mode == checkout.ModeRegister {
		return s.register(ctx, req.Auth.Email, req.Auth.Password)
	}
	return s.authenticate(ctx, req.Auth.Email, req.Auth.Password)
}

// MyOrders возвращает заказы покупателя по email учётной записи, новые первыми.
func (s *Service) MyOrders(ctx context.Context, sid string) ([]model.Order, error) {
	st, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if st.User == nil {
		return nil, ErrNotAuthenticated
	}

	orders, err := s.repo.ListOrdersByEmail(ctx, st.User.Email)
	if err != nil {
		return nil, persistence(err)
	}
	return orders, nil
}
