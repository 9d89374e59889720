package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/access"
	"github.com/ariefcatur/go-plant-market/internal/accounts"
	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/catalog"
	"github.com/ariefcatur/go-plant-market/internal/logx"
	"github.com/ariefcatur/go-plant-market/internal/orders"
	"github.com/ariefcatur/go-plant-market/internal/sessions"
	"github.com/go-chi/chi/v5"
)

const (
	SessionCookie      = "session"
	HeaderSessionToken = "X-Session-Token"
)

// API serves the marketplace endpoints.
type API struct {
	Accounts *accounts.Service
	Catalog  *catalog.Service
	Orders   *orders.Service
	// Products is read unscoped when embedding products into order views.
	Products      catalog.Store
	Sessions      *sessions.Manager
	SecureCookies bool
}

func (a *API) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(a.authenticate)

		r.Route("/users", func(r chi.Router) {
			r.Post("/register", a.register)
			r.Post("/login", a.login)
			r.Post("/logout", a.logout)
			r.Get("/me", a.me)
			r.Patch("/me", a.updateMe)
			r.Delete("/me", a.deleteMe)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", a.listProducts)
			r.Post("/", a.createProduct)
			r.Get("/{id}", a.getProduct)
			r.Patch("/{id}", a.updateProduct)
			r.Delete("/{id}", a.deleteProduct)
		})
		r.Route("/sold-products", func(r chi.Router) {
			r.Get("/", a.listOrders)
			r.Post("/", a.createOrder)
			r.Get("/{id}", a.getOrder)
			r.Patch("/{id}", a.updateOrder)
		})
	})
}

type ctxKey int

const (
	accountKey ctxKey = iota
	tokenKey
)

// authenticate attaches the session account to the request. Requests without
// a usable session continue anonymously; handlers and the access policy
// decide whether that is enough.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), tokenKey, token)

		s, err := a.Sessions.Resolve(ctx, token)
		if err != nil {
			if !apperr.Is(err, apperr.Unauthenticated) {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		acc, err := a.Accounts.Get(ctx, s.AccountID)
		switch {
		case apperr.Is(err, apperr.NotFound):
			logx.Warn().Str("session_id", s.ID).Str("account_id", s.AccountID).Msg("session for missing account")
		case err != nil:
			writeError(w, r, err)
			return
		case acc.IsActive:
			ctx = context.WithValue(ctx, accountKey, acc)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestToken(r *http.Request) string {
	if t, ok := sessions.ExtractBearer(r.Header.Get("Authorization")); ok {
		return t
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func currentAccount(ctx context.Context) (accounts.Account, bool) {
	acc, ok := ctx.Value(accountKey).(accounts.Account)
	return acc, ok
}

// callerFrom is nil for anonymous requests.
func callerFrom(ctx context.Context) *access.Caller {
	acc, ok := currentAccount(ctx)
	if !ok {
		return nil
	}
	return &access.Caller{ID: acc.ID, IsSeller: acc.IsSeller}
}

func sessionToken(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

func (a *API) startSession(w http.ResponseWriter, r *http.Request, accountID string) error {
	token, s, err := a.Sessions.Issue(r.Context(), accountID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(time.Until(s.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(HeaderSessionToken, token)
	return nil
}

func (a *API) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
