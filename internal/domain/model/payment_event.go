package model

import "time"

// どの経路で来たか
type PaymentEventSource string

const (
	PaymentSourceSuccess PaymentEventSource = "success"
	PaymentSourceFail    PaymentEventSource = "fail"
	PaymentSourceCancel  PaymentEventSource = "cancel"
	PaymentSourceIPN     PaymentEventSource = "ipn"
	//管理者が手で変えた
	PaymentSourceManual PaymentEventSource = "manual"
)

// 処理結果
type PaymentEventOutcome string

const (
	PaymentOutcomeApplied   PaymentEventOutcome = "applied"
	PaymentOutcomeDuplicate PaymentEventOutcome = "duplicate"
	PaymentOutcomeMismatch  PaymentEventOutcome = "mismatch"
	PaymentOutcomeIgnored   PaymentEventOutcome = "ignored"
	PaymentOutcomeError     PaymentEventOutcome = "error"
)

// 決済コールバックと手動ステータス変更のログ。
// 照合できなかったものもここに残す。
type PaymentEvent struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//tran_id。未知のIDもそのまま入る
	OrderID string `gorm:"type:varchar(64);not null;index" json:"order_id"`

	Source        PaymentEventSource  `gorm:"type:varchar(20);not null;index" json:"source"`
	GatewayStatus string              `gorm:"type:varchar(50)" json:"gateway_status"`
	ValidationID  string              `gorm:"type:varchar(255)" json:"validation_id"`
	Outcome       PaymentEventOutcome `gorm:"type:varchar(20);not null;index" json:"outcome"`

	//FromStatus/ToStatusは遷移したときだけ
	FromStatus OrderStatus `gorm:"type:varchar(20)" json:"from_status,omitempty"`
	ToStatus   OrderStatus `gorm:"type:varchar(20)" json:"to_status,omitempty"`

	Detail string `gorm:"type:text" json:"detail"`

	//手動のときだけ
	ActorUserID string `gorm:"type:varchar(64)" json:"actor_user_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
