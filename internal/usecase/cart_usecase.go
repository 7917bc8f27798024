package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/domain/pricing"
	"storefront/internal/logger"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

type OwnerKind string

const (
	OwnerUser  OwnerKind = "user"
	OwnerGuest OwnerKind = "guest"
)

// CartOwner はリクエストごとにhandlerが決める（JWTのsub か ゲストCookie）
type CartOwner struct {
	Kind OwnerKind
	ID   string
}

func UserOwner(userID string) CartOwner   { return CartOwner{Kind: OwnerUser, ID: userID} }
func GuestOwner(guestID string) CartOwner { return CartOwner{Kind: OwnerGuest, ID: guestID} }

// CartUsecase は /cart の業務ロジック。
// ログインユーザーはDB、ゲストはRedis。
type CartUsecase struct {
	tx        repo.TransactionManager
	cartItems repo.CartItemRepository
	guest     repo.GuestCartRepository
	products  repo.ProductRepository
	calc      pricing.Calculator
	log       *slog.Logger
}

func NewCartUsecase(
	tx repo.TransactionManager,
	cartItems repo.CartItemRepository,
	guest repo.GuestCartRepository,
	products repo.ProductRepository,
	calc pricing.Calculator,
	log *slog.Logger,
) *CartUsecase {
	return &CartUsecase{
		tx:        tx,
		cartItems: cartItems,
		guest:     guest,
		products:  products,
		calc:      calc,
		log:       log,
	}
}

// 表示用の明細。商品が消えていたら Missing=true で価格0
type CartItemView struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image_url"`
	Stock     int64           `json:"stock"`
	Quantity  int64           `json:"quantity"`
	Missing   bool            `json:"missing,omitempty"`
}

type CartView struct {
	Items      []CartItemView  `json:"items"`
	TotalItems int64           `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Totals     pricing.Totals  `json:"totals"`
}

type AddCartInput struct {
	ProductID string
	Quantity  int64
}

// 読むたびに計算し直す
func (u *CartUsecase) GetCart(ctx context.Context, owner CartOwner) (CartView, error) {
	if err := checkOwner(owner); err != nil {
		return CartView{}, err
	}
	return u.buildCartView(ctx, owner)
}

// AddToCart はカートに追加（同一商品は数量加算）。
func (u *CartUsecase) AddToCart(ctx context.Context, owner CartOwner, in AddCartInput) (CartView, error) {
	if err := checkOwner(owner); err != nil {
		return CartView{}, err
	}
	productID := strings.TrimSpace(in.ProductID)
	if productID == "" {
		return CartView{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 1 {
		return CartView{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	// 商品チェック（公開のみ）
	p, err := u.products.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartView{}, NewHTTPError(http.StatusBadRequest, "invalid product")
	}
	if err != nil {
		return CartView{}, dbError(ctx, u.log, "cart.add.product", err)
	}
	if !p.IsActive {
		return CartView{}, NewHTTPError(http.StatusBadRequest, "invalid product")
	}

	if owner.Kind == OwnerGuest {
		err = u.guest.Add(ctx, owner.ID, productID, qty)
	} else {
		err = u.cartItems.AddOrIncrement(ctx, owner.ID, productID, qty)
	}
	if err != nil {
		return CartView{}, dbError(ctx, u.log, "cart.add", err)
	}

	return u.buildCartView(ctx, owner)
}

// q < 1 なら削除。在庫には合わせない
func (u *CartUsecase) SetQuantity(ctx context.Context, owner CartOwner, itemID string, qty int64) (CartView, error) {
	if err := checkOwner(owner); err != nil {
		return CartView{}, err
	}
	if strings.TrimSpace(itemID) == "" {
		return CartView{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if qty < 1 {
		return u.RemoveItem(ctx, owner, itemID)
	}

	var err error
	if owner.Kind == OwnerGuest {
		err = u.guest.SetQuantity(ctx, owner.ID, itemID, qty)
	} else {
		err = u.cartItems.UpdateQuantity(ctx, owner.ID, itemID, qty)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return CartView{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return CartView{}, dbError(ctx, u.log, "cart.set_quantity", err)
	}

	return u.buildCartView(ctx, owner)
}

// 明細削除。無いIDでも成功
func (u *CartUsecase) RemoveItem(ctx context.Context, owner CartOwner, itemID string) (CartView, error) {
	if err := checkOwner(owner); err != nil {
		return CartView{}, err
	}

	var err error
	if owner.Kind == OwnerGuest {
		err = u.guest.Remove(ctx, owner.ID, itemID)
	} else {
		err = u.cartItems.DeleteByID(ctx, owner.ID, itemID)
	}
	if err != nil {
		return CartView{}, dbError(ctx, u.log, "cart.remove", err)
	}

	return u.buildCartView(ctx, owner)
}

func (u *CartUsecase) ClearCart(ctx context.Context, owner CartOwner) (CartView, error) {
	if err := checkOwner(owner); err != nil {
		return CartView{}, err
	}

	var err error
	if owner.Kind == OwnerGuest {
		err = u.guest.Clear(ctx, owner.ID)
	} else {
		err = u.cartItems.ClearByUserID(ctx, owner.ID)
	}
	if err != nil {
		return CartView{}, dbError(ctx, u.log, "cart.clear", err)
	}

	return emptyCartView(), nil
}

// MergeGuestCart はログイン時に1回だけ呼ぶ。
// ゲストカートを取り出して（Redisからは消える）ユーザーのカートへ数量加算。
// DBで失敗したら取り出した行をRedisに戻す。
func (u *CartUsecase) MergeGuestCart(ctx context.Context, userID string, guestID string) (CartView, error) {
	if strings.TrimSpace(userID) == "" {
		return CartView{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	owner := UserOwner(userID)
	if strings.TrimSpace(guestID) == "" {
		return u.buildCartView(ctx, owner)
	}

	lines, err := u.guest.Take(ctx, guestID)
	if err != nil {
		return CartView{}, dbError(ctx, u.log, "cart.merge.take", err)
	}
	if len(lines) == 0 {
		return u.buildCartView(ctx, owner)
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		for _, l := range lines {
			if err := r.CartItems().AddOrIncrement(ctx, userID, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		u.restoreGuestLines(ctx, guestID, lines)
		return CartView{}, dbError(ctx, u.log, "cart.merge", err)
	}

	logger.FromContext(ctx, u.log).InfoContext(ctx, "guest cart merged", "user_id", userID, "lines", len(lines))
	return u.buildCartView(ctx, owner)
}

func (u *CartUsecase) restoreGuestLines(ctx context.Context, guestID string, lines []model.GuestCartLine) {
	for _, l := range lines {
		if err := u.guest.Add(ctx, guestID, l.ProductID, l.Quantity); err != nil {
			logger.FromContext(ctx, u.log).ErrorContext(ctx, "restore guest cart line failed",
				"guest_id", guestID, "product_id", l.ProductID, "quantity", l.Quantity, "error", err)
		}
	}
}

// 明細＋商品スナップショット＋金額
func (u *CartUsecase) buildCartView(ctx context.Context, owner CartOwner) (CartView, error) {
	type line struct {
		id        string
		productID string
		qty       int64
	}
	var lines []line

	if owner.Kind == OwnerGuest {
		gl, err := u.guest.List(ctx, owner.ID)
		if err != nil {
			return CartView{}, dbError(ctx, u.log, "cart.list.guest", err)
		}
		for _, l := range gl {
			lines = append(lines, line{id: l.ProductID, productID: l.ProductID, qty: l.Quantity})
		}
	} else {
		items, err := u.cartItems.ListByUserID(ctx, owner.ID)
		if err != nil {
			return CartView{}, dbError(ctx, u.log, "cart.list", err)
		}
		for _, it := range items {
			lines = append(lines, line{id: it.ID, productID: it.ProductID, qty: it.Quantity})
		}
	}

	if len(lines) == 0 {
		return emptyCartView(), nil
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.productID)
	}
	products, err := u.products.FindByIDs(ctx, ids)
	if err != nil {
		return CartView{}, dbError(ctx, u.log, "cart.list.products", err)
	}

	view := CartView{Items: make([]CartItemView, 0, len(lines))}
	priced := make([]pricing.Line, 0, len(lines))

	for _, l := range lines {
		item := CartItemView{ID: l.id, ProductID: l.productID, Quantity: l.qty, Price: decimal.Zero}
		if p, ok := products[l.productID]; ok {
			item.Name = p.Name
			item.Price = p.Price
			item.ImageURL = p.ImageURL
			item.Stock = p.Stock
			priced = append(priced, pricing.Line{UnitPrice: p.Price, Quantity: l.qty})
		} else {
			item.Missing = true
		}
		view.Items = append(view.Items, item)
		view.TotalItems += l.qty
	}

	view.Totals = u.calc.Compute(priced)
	view.TotalPrice = view.Totals.Subtotal
	return view, nil
}

func emptyCartView() CartView {
	return CartView{
		Items:      []CartItemView{},
		TotalPrice: decimal.Zero,
		Totals:     pricing.Totals{Subtotal: decimal.Zero, Shipping: decimal.Zero, Tax: decimal.Zero, Total: decimal.Zero},
	}
}

func checkOwner(owner CartOwner) error {
	if strings.TrimSpace(owner.ID) == "" {
		if owner.Kind == OwnerGuest {
			return NewHTTPError(http.StatusBadRequest, "missing guest cart id")
		}
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return nil
}
