package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-plant-market/internal/access"
	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/catalog"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type productReq struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	Image       *string          `json:"image"`
	Stock       *int             `json:"stock"`
}

func (req productReq) patch() catalog.ProductPatch {
	p := catalog.ProductPatch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Image:       req.Image,
		Stock:       req.Stock,
	}
	if req.Category != nil {
		c := catalog.Category(*req.Category)
		p.Category = &c
	}
	return p
}

func (req productReq) input() (catalog.ProductInput, error) {
	fields := map[string]string{}
	if req.Name == nil {
		fields["name"] = "This field is required."
	}
	if req.Price == nil {
		fields["price"] = "This field is required."
	}
	if req.Category == nil {
		fields["category"] = "This field is required."
	}
	if err := apperr.Fields(fields); err != nil {
		return catalog.ProductInput{}, err
	}
	in := catalog.ProductInput{
		Name:     *req.Name,
		Price:    *req.Price,
		Category: catalog.Category(*req.Category),
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.Image != nil {
		in.Image = *req.Image
	}
	if req.Stock != nil {
		in.Stock = *req.Stock
	}
	return in, nil
}

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := a.Catalog.List(r.Context(), callerFrom(r.Context()), catalog.Filter{
		Category: r.URL.Query().Get("category"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.viewer().productList(r.Context(), ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := a.Catalog.Get(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.writeProduct(w, r, http.StatusOK, p)
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	// Reject non-sellers before looking at the body.
	if _, err := a.Catalog.Policy.Decide(access.ProductWrite, caller); err != nil {
		writeError(w, r, err)
		return
	}
	var req productReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := a.Catalog.Create(r.Context(), caller, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.writeProduct(w, r, http.StatusCreated, p)
}

func (a *API) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := a.Catalog.Update(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), req.patch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.writeProduct(w, r, http.StatusOK, p)
}

func (a *API) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.Catalog.Delete(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) writeProduct(w http.ResponseWriter, r *http.Request, status int, p catalog.Product) {
	pv, err := a.viewer().product(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, pv)
}
