package middlewares

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"oip/dpreport/internal/app/pkg/ginx"
)

// ClaimsKey gin.Context 中保存 JWT claims 的键
const ClaimsKey = "jwt_claims"

var errMissingToken = errors.New("missing bearer token")

// JWTAuth 校验 HS256 Bearer Token，并要求 claims 中包含指定角色
// 角色来自 "role"（字符串）或 "roles"（数组）
func JWTAuth(secret string, requiredRole string) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		claims, err := parseToken(c.GetHeader("Authorization"), key)
		if err != nil {
			ginx.Unauthorized(c, "Invalid credentials.")
			return
		}

		if !hasRole(claims, requiredRole) {
			ginx.Forbidden(c, "Access denied. You do not have the necessary permissions to access this resource.")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

func parseToken(header string, key []byte) (jwt.MapClaims, error) {
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(tokenStr) == "" {
		return nil, errMissingToken
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(tokenStr), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func hasRole(claims jwt.MapClaims, role string) bool {
	if r, ok := claims["role"].(string); ok && r == role {
		return true
	}
	roles, ok := claims["roles"].([]interface{})
	if !ok {
		return false
	}
	for _, r := range roles {
		if s, ok := r.(string); ok && s == role {
			return true
		}
	}
	return false
}
