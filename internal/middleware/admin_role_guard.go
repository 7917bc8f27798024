package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RoleAdminは運用者（手動の照合・ステータス変更）のロール
const RoleAdmin = "ADMIN"

// RequireRoleはAuthJWTが入れたロールが許可リストにあるか見る
func RequireRole(allowed ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || role == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			for _, a := range allowed {
				if strings.EqualFold(role, a) {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, errorJSON(strings.ToLower(allowed[0])+" only"))
		}
	}
}

// /admin配下の注文・決済イベント用
func AdminRoleGuard() echo.MiddlewareFunc {
	return RequireRole(RoleAdmin)
}
