package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"otp-auth-service/internal/auth/service"
	"otp-auth-service/internal/logger"
	"otp-auth-service/internal/server/middleware"
	userdomain "otp-auth-service/internal/user/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuth struct {
	phone, code, token string

	requestErr error
	verifyErr  error
	refreshErr error
	logoutErr  error
}

func (f *fakeAuth) RequestOTP(ctx context.Context, phone string) (*service.OTPResult, error) {
	f.phone = phone
	if f.requestErr != nil {
		return nil, f.requestErr
	}
	return &service.OTPResult{ExpiresIn: 300}, nil
}

func (f *fakeAuth) VerifyOTP(ctx context.Context, phone, code string) (*service.LoginResult, error) {
	f.phone, f.code = phone, code
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &service.LoginResult{
		User:         &userdomain.User{ID: "user-1", PhoneNumber: phone},
		AccessToken:  "access",
		RefreshToken: "refresh",
	}, nil
}

func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (*service.RefreshResult, error) {
	f.token = refreshToken
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &service.RefreshResult{AccessToken: "access-2"}, nil
}

func (f *fakeAuth) Logout(ctx context.Context, refreshToken string) error {
	f.token = refreshToken
	return f.logoutErr
}

// fakeRequireAuth stamps a fixed identity into the context.
func fakeRequireAuth(c *gin.Context) {
	c.Request = c.Request.WithContext(middleware.WithIdentity(c.Request.Context(), "user-1", "+15551234567"))
	c.Next()
}

func newRouter(auth AuthService) *gin.Engine {
	r := gin.New()
	NewHandler(auth, logger.Discard()).RegisterRoutes(r, fakeRequireAuth)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %q", w.Body.String())
	}
	return w.Code, out
}

func TestRequestOTP(t *testing.T) {
	auth := &fakeAuth{}
	code, body := do(t, newRouter(auth), http.MethodPost, "/auth/request-otp", `{"phoneNumber":"+15551234567"}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	if body["success"] != true || body["message"] != "OTP generated" || body["expiresIn"] != float64(300) {
		t.Errorf("body = %v", body)
	}
	if auth.phone != "+15551234567" {
		t.Errorf("service got phone %q", auth.phone)
	}
}

func TestRequestOTP_PhoneAlias(t *testing.T) {
	auth := &fakeAuth{}
	if code, _ := do(t, newRouter(auth), http.MethodPost, "/auth/request-otp", `{"phone":"+15551234567"}`); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if auth.phone != "+15551234567" {
		t.Errorf("phone alias not used: %q", auth.phone)
	}
}

func TestRequestOTP_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"malformed json", `{"phoneNumber":`, nil, http.StatusBadRequest, "invalid request body"},
		{"validation", `{}`, &service.ValidationError{Message: "phoneNumber is required"}, http.StatusBadRequest, "phoneNumber is required"},
		{"empty body", ``, &service.ValidationError{Message: "phoneNumber is required"}, http.StatusBadRequest, "phoneNumber is required"},
		{"internal", `{"phoneNumber":"+15551234567"}`, errors.New("store down"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, newRouter(&fakeAuth{requestErr: tt.err}), http.MethodPost, "/auth/request-otp", tt.body)
			if code != tt.wantStatus || body["message"] != tt.wantMsg || body["success"] != false {
				t.Errorf("got %d %v, want %d %q", code, body, tt.wantStatus, tt.wantMsg)
			}
		})
	}
}

func TestVerifyOTP(t *testing.T) {
	auth := &fakeAuth{}
	code, body := do(t, newRouter(auth), http.MethodPost, "/auth/verify-otp", `{"phoneNumber":"+15551234567","code":"123456"}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	user, _ := body["user"].(map[string]any)
	tokens, _ := body["tokens"].(map[string]any)
	if user["id"] != "user-1" || user["phoneNumber"] != "+15551234567" {
		t.Errorf("user = %v", user)
	}
	if tokens["accessToken"] != "access" || tokens["refreshToken"] != "refresh" {
		t.Errorf("tokens = %v", tokens)
	}
	if auth.code != "123456" {
		t.Errorf("service got code %q", auth.code)
	}
}

func TestVerifyOTP_ChallengeErrors(t *testing.T) {
	for _, err := range []error{service.ErrOTPNotFound, service.ErrOTPExpired, service.ErrOTPMismatch} {
		t.Run(err.Error(), func(t *testing.T) {
			code, body := do(t, newRouter(&fakeAuth{verifyErr: err}), http.MethodPost, "/auth/verify-otp", `{"phone":"+15551234567","code":"1"}`)
			if code != http.StatusBadRequest || body["message"] != err.Error() {
				t.Errorf("got %d %v", code, body)
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	auth := &fakeAuth{}
	code, body := do(t, newRouter(auth), http.MethodPost, "/auth/refresh", `{"refreshToken":"rt"}`)
	if code != http.StatusOK || body["accessToken"] != "access-2" || body["success"] != true {
		t.Fatalf("got %d %v", code, body)
	}
	if _, ok := body["refreshToken"]; ok {
		t.Error("refresh must not return a refresh token")
	}
	if auth.token != "rt" {
		t.Errorf("service got token %q", auth.token)
	}
}

func TestRefresh_Errors(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{&service.ValidationError{Message: "refreshToken is required"}, http.StatusBadRequest},
		{service.ErrInvalidRefreshToken, http.StatusUnauthorized},
		{service.ErrSessionNotFound, http.StatusUnauthorized},
		{service.ErrSessionExpired, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			code, body := do(t, newRouter(&fakeAuth{refreshErr: tt.err}), http.MethodPost, "/auth/refresh", `{"refreshToken":"rt"}`)
			if code != tt.wantStatus || body["message"] != tt.err.Error() {
				t.Errorf("got %d %v, want %d", code, body, tt.wantStatus)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	auth := &fakeAuth{}
	code, body := do(t, newRouter(auth), http.MethodPost, "/auth/logout", `{"refreshToken":"rt"}`)
	if code != http.StatusOK || body["success"] != true || auth.token != "rt" {
		t.Errorf("got %d %v token %q", code, body, auth.token)
	}
}

func TestMe(t *testing.T) {
	code, body := do(t, newRouter(&fakeAuth{}), http.MethodGet, "/auth/me", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	user, _ := body["user"].(map[string]any)
	if user["id"] != "user-1" || user["phoneNumber"] != "+15551234567" {
		t.Errorf("user = %v", user)
	}
}

func TestMe_WithoutIdentity(t *testing.T) {
	r := gin.New()
	NewHandler(&fakeAuth{}, logger.Discard()).RegisterRoutes(r, func(c *gin.Context) { c.Next() })
	code, body := do(t, r, http.MethodGet, "/auth/me", "")
	if code != http.StatusUnauthorized || body["message"] != "Unauthorized" {
		t.Errorf("got %d %v", code, body)
	}
}
