package middleware

import "github.com/labstack/echo/v4"

// UserID returns the authenticated owner id stored by JWTAuth, or "" when
// the request is unauthenticated.
func UserID(c echo.Context) string {
	if s, ok := c.Get(CtxUserID).(string); ok {
		return s
	}
	return ""
}

// rateIdentity names the caller in rate limit keys: the owner id when
// authenticated, "anon" otherwise.
func rateIdentity(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
