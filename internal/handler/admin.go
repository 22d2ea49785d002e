package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/soapyfy/internal/model"
	"github.com/mmeshcher/soapyfy/internal/service"
)

type adminCredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AdminLogin открывает сессию администратора.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminCredentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, r)
		return
	}

	admin, err := h.service.AdminLogin(r.Context(), sessionID(r), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: msgAdminCredentials.In(h.language(r))})
			return
		}
		h.writeError(w, r, err)
		return
	}
	h.rotateSession(w, r)
	writeJSON(w, http.StatusOK, admin)
}

// AdminLogout закрывает сессию администратора.
func (h *Handler) AdminLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.AdminLogout(r.Context(), sessionID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetUsers возвращает зарегистрированных покупателей.
func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponses(users))
}

// GetOrders возвращает все заказы, новые первыми.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponses(orders, h.language(r)))
}

type statusRequest struct {
	Status  model.OrderStatus `json:"status"`
	Version int64             `json:"version"`
}

// UpdateOrderStatus меняет статус заказа.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, r)
		return
	}

	o, err := h.service.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.Version)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(*o, h.language(r)))
}

// DeleteOrder удаляет заказ.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type consoleResponse struct {
	View   string            `json:"view"`
	Admin  *model.AdminUser  `json:"admin,omitempty"`
	Users  []userResponse    `json:"users,omitempty"`
	Orders []orderResponse   `json:"orders,omitempty"`
	Labels map[string]string `json:"statusLabels,omitempty"`
}

// Master показывает консоль администратора или форму входа, если сессии администратора нет.
func (h *Handler) Master(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Session(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if st.Admin == nil {
		writeJSON(w, http.StatusOK, consoleResponse{View: "login"})
		return
	}

	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	lang := h.languageOf(r, st.Language)
	labels := make(map[string]string, len(model.OrderStatuses))
	for _, s := range model.OrderStatuses {
		labels[string(s)] = s.Label().In(lang)
	}

	writeJSON(w, http.StatusOK, consoleResponse{
		View:   "console",
		Admin:  st.Admin,
		Users:  newUserResponses(users),
		Orders: newOrderResponses(orders, lang),
		Labels: labels,
	})
}

func newUserResponses(users []model.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, newUserResponse(&users[i]))
	}
	return out
}
