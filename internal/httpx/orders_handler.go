package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/orders"
	"github.com/go-chi/chi/v5"
)

type purchaseReq struct {
	ProductID       string `json:"product_id"`
	Quantity        *int   `json:"quantity"`
	ShippingAddress string `json:"shipping_address"`
}

type statusReq struct {
	Status string `json:"status"`
}

func (a *API) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := a.Orders.List(r.Context(), callerFrom(r.Context()), orders.Filter{
		Category: q.Get("category"),
		Status:   q.Get("status"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.viewer().orderList(r.Context(), list)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.Orders.Get(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ov, err := a.viewer().order(r.Context(), o, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (a *API) createOrder(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	if caller == nil {
		writeError(w, r, apperr.New(apperr.Unauthenticated, "Authentication credentials were not provided."))
		return
	}
	var req purchaseReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Quantity == nil {
		writeError(w, r, apperr.New(apperr.Validation, "invalid input").WithField("quantity", "This field is required."))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rc, err := a.Orders.Purchase(ctx, caller, orders.PurchaseInput{
		ProductID:       req.ProductID,
		Quantity:        *req.Quantity,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	ov, err := a.viewer().order(r.Context(), rc.Order, &rc.Product)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ov)
}

func (a *API) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := a.Orders.UpdateStatus(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), orders.Status(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ov, err := a.viewer().order(r.Context(), o, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}
