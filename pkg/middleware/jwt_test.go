package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSecret はテスト用のJWTシークレット。
const testSecret = "test-secret-key-for-unit-tests"

// newAuthRouter はJWTAuthを適用したテスト用ルーターを生成する。
// ハンドラーはコンテキストに設定された値をJSONで返す。
func newAuthRouter(extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(JWTAuth(testSecret))
	router.Use(extra...)
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":      GetUserID(c),
			"email":        GetEmail(c),
			"account_type": string(GetAccountType(c)),
		})
	})
	return router
}

// serve はテスト用のGETリクエストを実行する。
func serve(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// errorMessage はエラーレスポンスのerrorフィールドを取り出す。
func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディのパースに失敗: %v", err)
	}
	return body["error"]
}

// TestGenerateJWT はGenerateJWT関数を検証する。
func TestGenerateJWT(t *testing.T) {
	t.Parallel()

	t.Run("クレームが正しく設定されること", func(t *testing.T) {
		t.Parallel()

		before := time.Now()
		tokenStr, err := GenerateJWT(testSecret, "user-123", "volunteer@example.com", AccountTypeVolunteer)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
			return []byte(testSecret), nil
		})
		if err != nil || !token.Valid {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}

		if claims.UserID != "user-123" {
			t.Errorf("UserID = %q, want %q", claims.UserID, "user-123")
		}
		if claims.Subject != "user-123" {
			t.Errorf("Subject = %q, want %q", claims.Subject, "user-123")
		}
		if claims.Email != "volunteer@example.com" {
			t.Errorf("Email = %q, want %q", claims.Email, "volunteer@example.com")
		}
		if claims.AccountType != AccountTypeVolunteer {
			t.Errorf("AccountType = %q, want %q", claims.AccountType, AccountTypeVolunteer)
		}
		if claims.Issuer != Issuer {
			t.Errorf("Issuer = %q, want %q", claims.Issuer, Issuer)
		}

		// 有効期限が24時間後の前後1分以内であること
		expected := before.Add(24 * time.Hour)
		if claims.ExpiresAt.Time.Before(expected.Add(-time.Minute)) || claims.ExpiresAt.Time.After(expected.Add(time.Minute)) {
			t.Errorf("ExpiresAt = %v, want around %v", claims.ExpiresAt.Time, expected)
		}
	})

	t.Run("署名アルゴリズムがHS256であること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-alg", "alg@example.com", AccountTypeBlind)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		token, _, err := new(jwt.Parser).ParseUnverified(tokenStr, &JWTClaims{})
		if err != nil {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}
		if token.Method.Alg() != "HS256" {
			t.Errorf("署名アルゴリズム = %q, want %q", token.Method.Alg(), "HS256")
		}
	})
}

// TestJWTAuth はJWTAuthミドルウェアを検証する。
func TestJWTAuth(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンでユーザーIDとアカウント種別が設定されること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-ok", "ok@example.com", AccountTypeBlind)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		w := serve(newAuthRouter(), "Bearer "+tokenStr)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["user_id"] != "user-ok" {
			t.Errorf("user_id = %q, want %q", body["user_id"], "user-ok")
		}
		if body["account_type"] != "blind" {
			t.Errorf("account_type = %q, want %q", body["account_type"], "blind")
		}
		if body["email"] != "ok@example.com" {
			t.Errorf("email = %q, want %q", body["email"], "ok@example.com")
		}
		if got := w.Header().Get("X-User-ID"); got != "user-ok" {
			t.Errorf("X-User-ID = %q, want %q", got, "user-ok")
		}
	})

	t.Run("Authorizationヘッダーが無い場合401が返ること", func(t *testing.T) {
		t.Parallel()

		w := serve(newAuthRouter(), "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if got := errorMessage(t, w); got != "Authorizationヘッダーが必要です" {
			t.Errorf("error = %q", got)
		}
	})

	t.Run("Bearer接頭辞が無い場合401が返ること", func(t *testing.T) {
		t.Parallel()

		tokenStr, _ := GenerateJWT(testSecret, "user-nobearer", "nobearer@example.com", AccountTypeBlind)
		w := serve(newAuthRouter(), tokenStr)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if got := errorMessage(t, w); got != "Bearer トークン形式が不正です" {
			t.Errorf("error = %q", got)
		}
	})

	t.Run("異なるシークレットで署名されたトークンで401が返ること", func(t *testing.T) {
		t.Parallel()

		tokenStr, _ := GenerateJWT("different-secret", "user-diff", "diff@example.com", AccountTypeBlind)
		w := serve(newAuthRouter(), "Bearer "+tokenStr)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if got := errorMessage(t, w); got != "トークンが無効です" {
			t.Errorf("error = %q", got)
		}
	})

	t.Run("期限切れトークンで401が返ること", func(t *testing.T) {
		t.Parallel()

		claims := JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)),
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-25 * time.Hour)),
				Issuer:    Issuer,
			},
			UserID: "user-expired",
		}
		tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("トークンの署名に失敗: %v", err)
		}

		w := serve(newAuthRouter(), "Bearer "+tokenStr)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("HS256以外のアルゴリズムは拒否されること", func(t *testing.T) {
		t.Parallel()

		claims := JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			UserID: "user-hs512",
		}
		tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("トークンの署名に失敗: %v", err)
		}

		w := serve(newAuthRouter(), "Bearer "+tokenStr)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("user_idが空のトークンで401が返ること", func(t *testing.T) {
		t.Parallel()

		tokenStr, _ := GenerateJWT(testSecret, "", "anon@example.com", AccountTypeBlind)
		w := serve(newAuthRouter(), "Bearer "+tokenStr)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestRequireAccountType はアカウント種別による認可を検証する。
func TestRequireAccountType(t *testing.T) {
	t.Parallel()

	router := newAuthRouter(RequireAccountType(AccountTypeVolunteer, AccountTypeAdmin))

	tests := []struct {
		name        string
		accountType AccountType
		want        int
	}{
		{name: "volunteerは通過できること", accountType: AccountTypeVolunteer, want: http.StatusOK},
		{name: "adminは通過できること", accountType: AccountTypeAdmin, want: http.StatusOK},
		{name: "blindは403になること", accountType: AccountTypeBlind, want: http.StatusForbidden},
		{name: "種別なしは403になること", accountType: "", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tokenStr, err := GenerateJWT(testSecret, "user-"+string(tt.accountType), "x@example.com", tt.accountType)
			if err != nil {
				t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
			}
			w := serve(router, "Bearer "+tokenStr)
			if w.Code != tt.want {
				t.Errorf("ステータスコード = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

// TestGetUserID はGetUserID関数を検証する。
func TestGetUserID(t *testing.T) {
	t.Parallel()

	t.Run("user_idが設定されていない場合に空文字列が返ること", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		if got := GetUserID(c); got != "" {
			t.Errorf("GetUserID() = %q, want empty string", got)
		}
	})

	t.Run("user_idが文字列以外の型の場合に空文字列が返ること", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("user_id", 12345)
		if got := GetUserID(c); got != "" {
			t.Errorf("GetUserID() = %q, want empty string", got)
		}
	})
}
