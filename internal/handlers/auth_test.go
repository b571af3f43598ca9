package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/models"
)

func TestSignupAndLogin(t *testing.T) {
	ts := newTestServer(t)

	token := ts.signup(t, "Casey@Example.com", "hunter22")

	// The token works and the email was normalized.
	var me models.User
	resp := ts.do(t, "GET", "/api/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}
	decodeBody(t, resp, &me)
	if me.Email != "casey@example.com" {
		t.Fatalf("email = %q, want normalized", me.Email)
	}

	t.Run("duplicate email", func(t *testing.T) {
		resp := ts.do(t, "POST", "/api/auth/signup", "", map[string]any{"email": "casey@example.com", "password": "other"})
		resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("status = %d, want 409", resp.StatusCode)
		}
	})

	t.Run("login", func(t *testing.T) {
		resp := ts.do(t, "POST", "/api/auth/login", "", map[string]any{"email": "casey@example.com", "password": "hunter22"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var body struct {
			Token string `json:"token"`
		}
		decodeBody(t, resp, &body)
		if body.Token == "" {
			t.Fatal("no token")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := ts.do(t, "POST", "/api/auth/login", "", map[string]any{"email": "casey@example.com", "password": "nope"})
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		resp := ts.do(t, "POST", "/api/auth/login", "", map[string]any{"email": "ghost@example.com", "password": "x"})
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		resp := ts.do(t, "POST", "/api/auth/signup", "", map[string]any{"email": "", "password": ""})
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestGoogleSignIn(t *testing.T) {
	ts := newTestServer(t)

	exchange := func(t *testing.T, idToken string) (*http.Response, string) {
		t.Helper()
		resp := ts.do(t, "POST", "/api/auth/google", "", map[string]any{"idToken": idToken})
		if resp.StatusCode != http.StatusOK {
			return resp, ""
		}
		var body struct {
			Token string `json:"token"`
		}
		decodeBody(t, resp, &body)
		return resp, body.Token
	}

	resp, token := exchange(t, "good-google-token")
	if token == "" {
		t.Fatalf("exchange status = %d, want token", resp.StatusCode)
	}

	var me models.User
	resp = ts.do(t, "GET", "/api/me", token, nil)
	decodeBody(t, resp, &me)
	if me.Email != "pat@example.com" || me.DisplayName != "Pat" {
		t.Fatalf("profile = %+v", me)
	}

	t.Run("repeat sign-in reuses the account", func(t *testing.T) {
		_, again := exchange(t, "good-google-token")
		var second models.User
		resp := ts.do(t, "GET", "/api/me", again, nil)
		decodeBody(t, resp, &second)
		if second.ID != me.ID {
			t.Fatalf("second sign-in got user %s, want %s", second.ID, me.ID)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		resp, _ := exchange(t, "garbage")
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
	})
}

func TestGoogleLinksExistingEmailAccount(t *testing.T) {
	ts := newTestServer(t)

	// The password account exists first; the Google identity carries the
	// same email and must land on it, not mint a second user.
	passToken := ts.signup(t, "pat@example.com", "pw12345")
	var viaPassword models.User
	resp := ts.do(t, "GET", "/api/me", passToken, nil)
	decodeBody(t, resp, &viaPassword)

	resp = ts.do(t, "POST", "/api/auth/google", "", map[string]any{"idToken": "good-google-token"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("google status = %d", resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &body)

	var viaGoogle models.User
	resp = ts.do(t, "GET", "/api/me", body.Token, nil)
	decodeBody(t, resp, &viaGoogle)
	if viaGoogle.ID != viaPassword.ID {
		t.Fatalf("google sign-in minted user %s, want linked %s", viaGoogle.ID, viaPassword.ID)
	}

	// Password sign-in still works after linking.
	resp = ts.do(t, "POST", "/api/auth/login", "", map[string]any{"email": "pat@example.com", "password": "pw12345"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login after link = %d", resp.StatusCode)
	}
}

func TestGoogleUnconfigured(t *testing.T) {
	h := NewAuthHandler(models.NewMemUserStore(), nil, []byte(testSecret), zap.NewNop())
	req := httptest.NewRequest("POST", "/api/auth/google", strings.NewReader(`{"idToken":"x"}`))
	w := httptest.NewRecorder()
	h.Google(w, req)
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", w.Code)
	}
}

func TestUpdateMe(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "robin@example.com", "original-pw")

	var me models.User
	resp := ts.do(t, "PUT", "/api/me", token, map[string]any{"displayName": "Robin", "avatarUrl": "/media/avatar.png"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	decodeBody(t, resp, &me)
	if me.DisplayName != "Robin" || me.AvatarURL == nil || *me.AvatarURL != "/media/avatar.png" {
		t.Fatalf("profile = %+v", me)
	}

	t.Run("empty avatar clears it", func(t *testing.T) {
		resp := ts.do(t, "PUT", "/api/me", token, map[string]any{"avatarUrl": ""})
		var got models.User
		decodeBody(t, resp, &got)
		if got.AvatarURL != nil {
			t.Fatalf("avatar = %v, want cleared", *got.AvatarURL)
		}
	})

	t.Run("password change", func(t *testing.T) {
		resp := ts.do(t, "PUT", "/api/me", token, map[string]any{"password": "rotated-pw"})
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("update status = %d", resp.StatusCode)
		}

		resp = ts.do(t, "POST", "/api/auth/login", "", map[string]any{"email": "robin@example.com", "password": "original-pw"})
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("old password still accepted: %d", resp.StatusCode)
		}
		resp = ts.do(t, "POST", "/api/auth/login", "", map[string]any{"email": "robin@example.com", "password": "rotated-pw"})
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("new password rejected: %d", resp.StatusCode)
		}
	})

	t.Run("empty patch is a no-op", func(t *testing.T) {
		resp := ts.do(t, "PUT", "/api/me", token, map[string]any{})
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", resp.StatusCode)
		}
	})
}
