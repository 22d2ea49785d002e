package service

import (
	"context"

	"github.com/mmeshcher/soapyfy/internal/model"
	"github.com/mmeshcher/soapyfy/internal/session"
)

// CartView корзина сессии с производными суммами.
type CartView struct {
	Items    []model.CartItem
	Totals   model.Totals
	Language model.Language
}

func (s *Service) view(st *session.State) *CartView {
	return &CartView{
		Items:    st.Cart.Items(),
		Totals:   st.Cart.Totals(s.pricing),
		Language: st.Language,
	}
}

// Cart возвращает корзину сессии.
func (s *Service) Cart(ctx context.Context, sid string) (*CartView, error) {
	st, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	return s.view(st), nil
}

// AddToCart добавляет товар каталога в корзину.
func (s *Service) AddToCart(ctx context.Context, sid, productID string, quantity int) (*CartView, error) {
	p, ok := s.catalog.Lookup(productID)
	if !ok {
		return nil, ErrUnknownProduct
	}

	st, err := s.sessions.Update(ctx, sid, func(st *session.State) error {
		st.Cart.AddItem(p, quantity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(st), nil
}

// SetQuantity задаёт точное количество позиции. Неизвестная позиция игнорируется.
func (s *Service) SetQuantity(ctx context.Context, sid, productID string, quantity int) (*CartView, error) {
	st, err := s.sessions.Update(ctx, sid, func(st *session.State) error {
		st.Cart.SetQuantity(productID, quantity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(st), nil
}

// RemoveFromCart удаляет позицию из корзины.
func (s *Service) RemoveFromCart(ctx context.Context, sid, productID string) (*CartView, error) {
	st, err := s.sessions.Update(ctx, sid, func(st *session.State) error {
		st.Cart.RemoveItem(productID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(st), nil
}

// SetLanguage переключает язык сессии.
func (s *Service) SetLanguage(ctx context.Context, sid string, lang model.Language) error {
	_, err := s.sessions.Update(ctx, sid, func(st *session.State) error {
		st.Language = lang
		return nil
	})
	return err
}
