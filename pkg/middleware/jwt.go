package middleware

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AccountType は利用者アカウントの種類を表す。
type AccountType string

const (
	// AccountTypeVolunteer は支援者（ボランティア）アカウント。
	AccountTypeVolunteer AccountType = "volunteer"
	// AccountTypeBlind は支援を依頼する視覚障害者アカウント。
	AccountTypeBlind AccountType = "blind"
	// AccountTypeAdmin は管理者アカウント。
	AccountTypeAdmin AccountType = "admin"
)

// Issuer はこのサービスが発行するJWTのiss。
const Issuer = "seeforme-auth"

// tokenTTL はJWTの有効期間。
const tokenTTL = 24 * time.Hour

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// AccountType はアカウントの種類。
	AccountType AccountType `json:"account_type"`
}

// コンテキストキー。
const (
	contextKeyUserID      = "user_id"
	contextKeyEmail       = "email"
	contextKeyAccountType = "account_type"
)

// headerKeyUserID は認証済みユーザーIDを返すレスポンスヘッダーキー。
const headerKeyUserID = "X-User-ID"

// GenerateJWT はユーザー情報からJWTトークンを生成する。
// 開発用トークン発行コマンドとテストから呼び出される。
func GenerateJWT(secret, userID, email string, accountType AccountType) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
		UserID:      userID,
		Email:       email,
		AccountType: accountType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// JWTAuth はJWTトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "user_id"、"email"、"account_type" を設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer トークン形式が不正です",
			})
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid || claims.UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		c.Set(contextKeyUserID, claims.UserID)
		c.Set(contextKeyEmail, claims.Email)
		c.Set(contextKeyAccountType, claims.AccountType)
		c.Header(headerKeyUserID, claims.UserID)
		c.Next()
	}
}

// RequireAccountType は指定された種類のアカウントのみ通過させるGinミドルウェアを返す。
// JWTAuthの後に適用すること。
func RequireAccountType(allowed ...AccountType) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(allowed, GetAccountType(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "このアカウント種別では操作できません",
			})
			return
		}
		c.Next()
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	return c.GetString(contextKeyUserID)
}

// GetEmail はGinコンテキストからメールアドレスを取得する。
func GetEmail(c *gin.Context) string {
	return c.GetString(contextKeyEmail)
}

// GetAccountType はGinコンテキストからアカウント種別を取得する。
func GetAccountType(c *gin.Context) AccountType {
	v, _ := c.Get(contextKeyAccountType)
	if t, ok := v.(AccountType); ok {
		return t
	}
	return ""
}
