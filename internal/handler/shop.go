package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/soapyfy/internal/cart"
	"github.com/mmeshcher/soapyfy/internal/model"
)

// GetProducts возвращает каталог на языке запроса.
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	lang := h.language(r)

	products := h.service.Products()
	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, newProductResponse(p, lang))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProduct возвращает один товар.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	lang := h.language(r)

	p, ok := h.service.Product(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: msgUnknownProduct.In(lang)})
		return
	}
	writeJSON(w, http.StatusOK, newProductResponse(p, lang))
}

type languageRequest struct {
	Language string `json:"language"`
}

// SetLanguage переключает язык сессии.
func (h *Handler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, r)
		return
	}

	lang, ok := model.ParseLanguage(req.Language)
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Errors: map[string]string{"language": msgInvalidLanguage.In(h.language(r))},
		})
		return
	}

	if err := h.service.SetLanguage(r.Context(), sessionID(r), lang); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, languageRequest{Language: string(lang)})
}

// GetCart возвращает корзину с суммами и счётчиком товаров.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Cart(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.newCartResponse(view, h.languageOf(r, view.Language)))
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// AddCartItem добавляет товар в корзину.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil || req.ProductID == "" {
		h.badRequest(w, r)
		return
	}
	if req.Quantity > cart.MaxQuantity {
		h.quantityTooLarge(w, r)
		return
	}

	view, err := h.service.AddToCart(r.Context(), sessionID(r), req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.newCartResponse(view, h.languageOf(r, view.Language)))
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

// UpdateCartItem задаёт количество позиции. Ноль и отрицательные значения удаляют её.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil || req.Quantity == nil {
		h.badRequest(w, r)
		return
	}
	if *req.Quantity > cart.MaxQuantity {
		h.quantityTooLarge(w, r)
		return
	}

	view, err := h.service.SetQuantity(r.Context(), sessionID(r), chi.URLParam(r, "id"), *req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.newCartResponse(view, h.languageOf(r, view.Language)))
}

// RemoveCartItem удаляет позицию из корзины.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.RemoveFromCart(r.Context(), sessionID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.newCartResponse(view, h.languageOf(r, view.Language)))
}

func (h *Handler) quantityTooLarge(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Errors: map[string]string{"quantity": msgQuantityTooLarge.In(h.language(r))},
	})
}

// languageOf выбирает язык по параметру lang, иначе язык уже загруженной сессии.
func (h *Handler) languageOf(r *http.Request, sessionLang model.Language) model.Language {
	if lang, ok := model.ParseLanguage(r.URL.Query().Get("lang")); ok {
		return lang
	}
	if sessionLang != "" {
		return sessionLang
	}
	return model.DefaultLanguage
}
