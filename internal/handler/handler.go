// Package handler содержит HTTP-обработчики API витрины soapyfy.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/soapyfy/internal/cart"
	"github.com/mmeshcher/soapyfy/internal/checkout"
	"github.com/mmeshcher/soapyfy/internal/middleware"
	"github.com/mmeshcher/soapyfy/internal/model"
	"github.com/mmeshcher/soapyfy/internal/service"
	"github.com/mmeshcher/soapyfy/internal/session"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Session(ctx context.Context, sid string) (*session.State, error)
	Products() []model.Product
	Product(id string) (model.Product, bool)
	Format(amount decimal.Decimal) string

	Cart(ctx context.Context, sid string) (*service.CartView, error)
	AddToCart(ctx context.Context, sid, productID string, quantity int) (*service.CartView, error)
	SetQuantity(ctx context.Context, sid, productID string, quantity int) (*service.CartView, error)
	RemoveFromCart(ctx context.Context, sid, productID string) (*service.CartView, error)
	SetLanguage(ctx context.Context, sid string, lang model.Language) error

	Register(ctx context.Context, sid, email, password string) (*model.User, error)
	Login(ctx context.Context, sid, email, password string) (*model.User, error)
	Logout(ctx context.Context, sid string) error
	AdminLogin(ctx context.Context, sid, username, password string) (*model.AdminUser, error)
	AdminLogout(ctx context.Context, sid string) error
	RotateSession(ctx context.Context, sid string) (string, error)

	PlaceOrder(ctx context.Context, sid string, req checkout.Request) (*model.Order, error)
	MyOrders(ctx context.Context, sid string) ([]model.Order, error)

	ListUsers(ctx context.Context) ([]model.User, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus, expectedVersion int64) (*model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

// Handler реализует HTTP-обработчики API витрины.
type Handler struct {
	service  Service
	logger   *zap.Logger
	sessions *middleware.SessionMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, sessions *middleware.SessionMiddleware) *Handler {
	return &Handler{
		service:  s,
		logger:   logger,
		sessions: sessions,
	}
}

var (
	msgBadRequest         = model.Text{FR: "Requête invalide", EN: "Malformed request"}
	msgInvalidCredentials = model.Text{FR: "Email ou mot de passe incorrect", EN: "Invalid email or password"}
	msgAdminCredentials   = model.Text{FR: "Identifiants administrateur incorrects", EN: "Invalid admin credentials"}
	msgEmailTaken         = model.Text{FR: "Cet email est déjà utilisé", EN: "This email is already registered"}
	msgPersistence        = model.Text{FR: "Service temporairement indisponible, veuillez réessayer", EN: "Service temporarily unavailable, please try again"}
	msgUnknownProduct     = model.Text{FR: "Produit introuvable", EN: "Product not found"}
	msgOrderNotFound      = model.Text{FR: "Commande introuvable", EN: "Order not found"}
	msgVersionConflict    = model.Text{FR: "La commande a été modifiée entre-temps", EN: "The order was modified in the meantime"}
	msgInvalidStatus      = model.Text{FR: "Statut invalide", EN: "Invalid status"}
	msgTransition         = model.Text{FR: "Changement de statut refusé", EN: "Status change rejected"}
	msgEmptyCart          = model.Text{FR: "Votre panier est vide", EN: "Your cart is empty"}
	msgNotAuthenticated   = model.Text{FR: "Connexion requise", EN: "Login required"}
	msgInvalidLanguage    = model.Text{FR: "Langue non prise en charge", EN: "Unsupported language"}
	msgQuantityTooLarge   = model.Text{FR: fmt.Sprintf("Maximum %d par article", cart.MaxQuantity), EN: fmt.Sprintf("At most %d per item", cart.MaxQuantity)}
	msgFreeShippingHint   = model.Text{FR: "Ajoutez %s pour la livraison gratuite", EN: "Add %s more for free shipping"}
	msgInternal           = model.Text{FR: "Erreur interne", EN: "Internal error"}
)

type errorResponse struct {
	Error     string            `json:"error,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgBadRequest.In(h.language(r))})
}

// writeError переводит ошибку сервиса в HTTP-ответ.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	lang := h.language(r)

	var fieldErrs checkout.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Errors: fieldErrs.Localize(lang)})
	case errors.Is(err, service.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: msgInvalidCredentials.In(lang)})
	case errors.Is(err, service.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: msgNotAuthenticated.In(lang)})
	case errors.Is(err, service.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Error: msgEmailTaken.In(lang)})
	case errors.Is(err, service.ErrPersistence):
		h.logger.Warn("store unavailable", zap.String("uri", r.RequestURI), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: msgPersistence.In(lang), Retryable: true})
	case errors.Is(err, service.ErrUnknownProduct):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: msgUnknownProduct.In(lang)})
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: msgOrderNotFound.In(lang)})
	case errors.Is(err, service.ErrVersionConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: msgVersionConflict.In(lang)})
	case errors.Is(err, service.ErrTransitionRejected):
		writeJSON(w, http.StatusConflict, errorResponse{Error: msgTransition.In(lang)})
	case errors.Is(err, service.ErrInvalidStatus):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Errors: map[string]string{"status": msgInvalidStatus.In(lang)}})
	case errors.Is(err, service.ErrEmptyCart):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: msgEmptyCart.In(lang)})
	default:
		h.logger.Error("request failed", zap.String("uri", r.RequestURI), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternal.In(lang)})
	}
}

// rotateSession переводит сессию на новый идентификатор после входа и возвращает
// запрос с новым идентификатором в контексте. При ошибке вход сохраняется под
// прежним идентификатором.
func (h *Handler) rotateSession(w http.ResponseWriter, r *http.Request) *http.Request {
	sid, err := h.service.RotateSession(r.Context(), sessionID(r))
	if err != nil {
		h.logger.Warn("session rotation failed", zap.Error(err))
		return r
	}
	h.sessions.SetSessionCookie(w, sid)
	return r.WithContext(middleware.WithSessionID(r.Context(), sid))
}

func sessionID(r *http.Request) string {
	sid, _ := middleware.SessionIDFromContext(r.Context())
	return sid
}

// language выбирает язык ответа: параметр lang, затем язык сессии, затем французский.
func (h *Handler) language(r *http.Request) model.Language {
	if lang, ok := model.ParseLanguage(r.URL.Query().Get("lang")); ok {
		return lang
	}
	if sid := sessionID(r); sid != "" {
		if st, err := h.service.Session(r.Context(), sid); err == nil && st.Language != "" {
			return st.Language
		}
	}
	return model.DefaultLanguage
}
