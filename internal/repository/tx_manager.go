package repository

import "context"

// 注文作成と決済反映で同じTxに載せるリポジトリ群
type TxRepos interface {
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	CartItems() CartItemRepository
	Inventory() InventoryRepository
	Products() ProductRepository
	PaymentEvents() PaymentEventRepository
}

// fnがerrorを返せば全部rollback、注文行だけ残ることはない
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
