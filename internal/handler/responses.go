package handler

import (
	"fmt"
	"time"

	"github.com/mmeshcher/soapyfy/internal/model"
	"github.com/mmeshcher/soapyfy/internal/service"
)

type productResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Ingredients []string `json:"ingredients"`
	Price       string   `json:"price"`
	Image       string   `json:"image"`
	Botanical   string   `json:"botanical"`
}

func newProductResponse(p model.Product, lang model.Language) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name.In(lang),
		Description: p.Description.In(lang),
		Ingredients: p.Ingredients.In(lang),
		Price:       p.Price,
		Image:       p.Image,
		Botanical:   p.Botanical,
	}
}

type itemResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Image    string `json:"image"`
	Quantity int    `json:"quantity"`
}

func newItemResponses(items []model.CartItem, lang model.Language) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, itemResponse{
			ID:       it.ID,
			Name:     it.Name.In(lang),
			Price:    it.Price,
			Image:    it.Image,
			Quantity: it.Quantity,
		})
	}
	return out
}

type amounts struct {
	Subtotal string `json:"subtotal"`
	Shipping string `json:"shipping"`
	Taxes    string `json:"taxes"`
	Total    string `json:"total"`
}

type cartResponse struct {
	Items        []itemResponse       `json:"items"`
	ItemCount    int                  `json:"itemCount"`
	Totals       amounts              `json:"totals"`
	Display      amounts              `json:"display"`
	FreeShipping freeShippingResponse `json:"freeShipping"`
	Language     model.Language       `json:"language"`
}

// freeShippingResponse подсказка "добавьте ещё X для бесплатной доставки".
// Hint пуст, если порог уже достигнут.
type freeShippingResponse struct {
	Remaining string `json:"remaining"`
	Display   string `json:"display"`
	Hint      string `json:"hint,omitempty"`
}

func (h *Handler) newFreeShippingResponse(t model.Totals, lang model.Language) freeShippingResponse {
	resp := freeShippingResponse{
		Remaining: t.FreeShippingRemaining.StringFixed(2),
		Display:   h.service.Format(t.FreeShippingRemaining),
	}
	if t.FreeShippingRemaining.IsPositive() {
		resp.Hint = fmt.Sprintf(msgFreeShippingHint.In(lang), resp.Display)
	}
	return resp
}

func (h *Handler) newCartResponse(v *service.CartView, lang model.Language) cartResponse {
	t := v.Totals
	return cartResponse{
		Items:     newItemResponses(v.Items, lang),
		ItemCount: t.ItemCount,
		Totals: amounts{
			Subtotal: t.Subtotal.StringFixed(2),
			Shipping: t.Shipping.StringFixed(2),
			Taxes:    t.Taxes.StringFixed(2),
			Total:    t.Total.StringFixed(2),
		},
		Display: amounts{
			Subtotal: h.service.Format(t.Subtotal),
			Shipping: h.service.Format(t.Shipping),
			Taxes:    h.service.Format(t.Taxes),
			Total:    h.service.Format(t.Total),
		},
		FreeShipping: h.newFreeShippingResponse(t, lang),
		Language:     lang,
	}
}

type orderResponse struct {
	ID            string              `json:"id"`
	UserID        string              `json:"userId,omitempty"`
	Items         []itemResponse      `json:"items"`
	Subtotal      string              `json:"subtotal"`
	Shipping      string              `json:"shipping"`
	Taxes         string              `json:"taxes"`
	Total         string              `json:"total"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod"`
	GuestInfo     *model.ShippingInfo `json:"guestInfo,omitempty"`
	Status        model.OrderStatus   `json:"status"`
	StatusLabel   string              `json:"statusLabel"`
	Version       int64               `json:"version"`
	CreatedAt     string              `json:"createdAt"`
}

func newOrderResponse(o model.Order, lang model.Language) orderResponse {
	return orderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		Items:         newItemResponses(o.Items, lang),
		Subtotal:      o.Subtotal.StringFixed(2),
		Shipping:      o.Shipping.StringFixed(2),
		Taxes:         o.Taxes.StringFixed(2),
		Total:         o.Total.StringFixed(2),
		PaymentMethod: o.PaymentMethod,
		GuestInfo:     o.GuestInfo,
		Status:        o.Status,
		StatusLabel:   o.Status.Label().In(lang),
		Version:       o.Version,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
	}
}

func newOrderResponses(orders []model.Order, lang model.Language) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, newOrderResponse(o, lang))
	}
	return out
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func newUserResponse(u *model.User) userResponse {
	resp := userResponse{ID: u.ID, Email: u.Email}
	if !u.CreatedAt.IsZero() {
		resp.CreatedAt = u.CreatedAt.Format(time.RFC3339)
	}
	return resp
}
