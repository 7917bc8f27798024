package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/domain/pricing"
	"storefront/internal/infra/redisstore"
	"storefront/internal/logger"
	"storefront/internal/usecase"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuestCartServer(t *testing.T) *echo.Echo {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	products := &fakeProducts{byID: map[string]model.Product{
		"ring-1": {ID: "ring-1", Name: "Gold Ring", Price: decimal.RequireFromString("40.00"), Stock: 5, IsActive: true},
	}}
	uc := usecase.NewCartUsecase(nil, nil, redisstore.NewGuestCartStore(rdb, 0), products, pricing.Default(), logger.Discard())

	e := echo.New()
	NewCartHandler(uc, false).RegisterRoutes(e, config.Config{JWTSecret: testSecret})
	return e
}

func guestCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == GuestCartCookie {
			return c
		}
	}
	return nil
}

func TestCartHandler_GuestCookieIssuedAndReused(t *testing.T) {
	e := newGuestCartServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	ck := guestCookie(rec)
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, 30*24*60*60, ck.MaxAge)

	//同じCookieで追加 → 同じカートに入る
	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"product_id":"ring-1","quantity":2}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(ck)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, guestCookie(rec))

	var view usecase.CartView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	require.Len(t, view.Items, 1)
	assert.Equal(t, int64(2), view.TotalItems)
	assert.Equal(t, "98.00", view.Totals.Total.StringFixed(2))

	//数量0で削除
	req = httptest.NewRequest(http.MethodPatch, "/cart/items/ring-1", strings.NewReader(`{"quantity":0}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(ck)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	view = usecase.CartView{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Empty(t, view.Items)
	assert.True(t, view.Totals.Total.IsZero())
}

func TestCartHandler_BadTokenIsRejected(t *testing.T) {
	e := newGuestCartServer(t)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer broken")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartHandler_MergeRequiresLogin(t *testing.T) {
	e := newGuestCartServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cart/merge", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWriteError(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, writeError(c, usecase.NewHTTPError(http.StatusNotFound, "not found")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, writeError(c, assert.AnError))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}
