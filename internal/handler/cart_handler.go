package handler

import (
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	GuestCartCookie = "guest_cart_id"
	guestCookieTTL  = 30 * 24 * time.Hour
)

// /cartのHTTP
type CartHandler struct {
	uc           *usecase.CartUsecase
	secureCookie bool
}

// DI
func NewCartHandler(uc *usecase.CartUsecase, secureCookie bool) *CartHandler {
	return &CartHandler{uc: uc, secureCookie: secureCookie}
}

type AddCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int64 `json:"quantity"`
}

// /cart を登録。ログインしていなければゲストCookieのカート
func (h *CartHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/cart")

	g.GET("", h.getCart, middleware.OptionalAuthJWT(cfg))
	g.DELETE("", h.clear, middleware.OptionalAuthJWT(cfg))
	g.POST("/items", h.addToCart, middleware.OptionalAuthJWT(cfg))
	g.PATCH("/items/:id", h.patchItem, middleware.OptionalAuthJWT(cfg))
	g.DELETE("/items/:id", h.deleteItem, middleware.OptionalAuthJWT(cfg))

	g.POST("/merge", h.merge, middleware.AuthJWT(cfg))
}

// JWTがあればユーザー、無ければCookie（無ければ発行）
func (h *CartHandler) owner(c echo.Context) usecase.CartOwner {
	if userID, ok := getUserIDFromContext(c); ok {
		return usecase.UserOwner(userID)
	}
	if ck, err := c.Cookie(GuestCartCookie); err == nil && ck.Value != "" {
		return usecase.GuestOwner(ck.Value)
	}

	id := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     GuestCartCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(guestCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return usecase.GuestOwner(id)
}

func (h *CartHandler) getCart(c echo.Context) error {
	out, err := h.uc.GetCart(c.Request().Context(), h.owner(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) addToCart(c echo.Context) error {
	var req AddCartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.AddToCart(c.Request().Context(), h.owner(c), usecase.AddCartInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// ゲストのときは :id が商品ID
func (h *CartHandler) patchItem(c echo.Context) error {
	var req UpdateCartItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.SetQuantity(c.Request().Context(), h.owner(c), c.Param("id"), req.Quantity)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) deleteItem(c echo.Context) error {
	out, err := h.uc.RemoveItem(c.Request().Context(), h.owner(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) clear(c echo.Context) error {
	out, err := h.uc.ClearCart(c.Request().Context(), h.owner(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// ログイン直後にフロントが呼ぶ
func (h *CartHandler) merge(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	guestID := ""
	if ck, err := c.Cookie(GuestCartCookie); err == nil {
		guestID = ck.Value
	}

	out, err := h.uc.MergeGuestCart(c.Request().Context(), userID, guestID)
	if err != nil {
		return writeError(c, err)
	}

	//取り込んだのでCookieは捨てる
	if guestID != "" {
		c.SetCookie(&http.Cookie{
			Name:     GuestCartCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}

	return c.JSON(http.StatusOK, out)
}
