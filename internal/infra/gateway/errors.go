package gateway

import "fmt"

// Error はゲートウェイ呼び出しの失敗。
// Transport=true は通信側の問題、false はゲートウェイが断った。
type Error struct {
	Op        string
	Reason    string
	Transport bool
	// 断られたときの応答（ログ用）
	Payload map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s", e.Op, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }
