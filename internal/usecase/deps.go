package usecase

import "time"

// 注文ID・カート明細IDの採番
type IDGenerator interface {
	NewID() string
}

type Clock interface {
	Now() time.Time
}
