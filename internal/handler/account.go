package handler

import (
	"net/http"

	"github.com/mmeshcher/soapyfy/internal/checkout"
	"github.com/mmeshcher/soapyfy/internal/model"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register создаёт учётную запись покупателя и выполняет вход.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, r)
		return
	}

	u, err := h.service.Register(r.Context(), sessionID(r), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.rotateSession(w, r)
	writeJSON(w, http.StatusCreated, newUserResponse(u))
}

// Login выполняет вход покупателя.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, r)
		return
	}

	u, err := h.service.Login(r.Context(), sessionID(r), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.rotateSession(w, r)
	writeJSON(w, http.StatusOK, newUserResponse(u))
}

// Logout завершает сессию покупателя. Корзина сохраняется.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), sessionID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMyOrders возвращает заказы текущего покупателя.
func (h *Handler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.MyOrders(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponses(orders, h.language(r)))
}

type checkoutRequest struct {
	Mode          checkout.Mode       `json:"checkoutType"`
	Guest         model.ShippingInfo  `json:"guest"`
	Shipping      model.ShippingInfo  `json:"shipping"`
	Auth          credentialsRequest  `json:"auth"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod"`
}

// Checkout оформляет заказ из корзины сессии.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, r)
		return
	}

	o, err := h.service.PlaceOrder(r.Context(), sessionID(r), checkout.Request{
		Mode:          req.Mode,
		Guest:         req.Guest,
		Shipping:      req.Shipping,
		Auth:          checkout.Credentials{Email: req.Auth.Email, Password: req.Auth.Password},
		PaymentMethod: req.PaymentMethod,
	})
	// Встроенный вход выполняется до записи заказа и сохраняется даже при ошибке.
	if req.Mode == checkout.ModeLogin || req.Mode == checkout.ModeRegister {
		r = h.rotateSession(w, r)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderResponse(*o, h.language(r)))
}
