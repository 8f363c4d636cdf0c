package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateAndVerify(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if key == "" {
		t.Fatal("generated key is empty")
	}

	hash, err := HashAPIKey(key)
	if err != nil {
		t.Fatalf("HashAPIKey: %v", err)
	}

	if err := VerifyAPIKey(hash, key); err != nil {
		t.Errorf("VerifyAPIKey(correct key) = %v, want nil", err)
	}
	if err := VerifyAPIKey(hash, "wrong-key"); err == nil {
		t.Error("VerifyAPIKey(wrong key) = nil, want error")
	}
}

func TestKeysAreUnique(t *testing.T) {
	a, _ := GenerateAPIKey()
	b, _ := GenerateAPIKey()
	if a == b {
		t.Error("two generated keys are identical")
	}
}

func TestMiddleware(t *testing.T) {
	key, _ := GenerateAPIKey()
	hash, _ := HashAPIKey(key)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		hash   string
		header string
		want   int
	}{
		{"no auth configured", "", "", http.StatusOK},
		{"valid key", hash, "Bearer " + key, http.StatusOK},
		{"wrong key", hash, "Bearer not-the-key", http.StatusUnauthorized},
		{"missing header", hash, "", http.StatusUnauthorized},
		{"not a bearer header", hash, "Basic dXNlcg==", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Middleware(tt.hash)(ok)
			req := httptest.NewRequest("GET", "/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer abc123")
	if got := BearerToken(req); got != "abc123" {
		t.Errorf("BearerToken() = %q, want %q", got, "abc123")
	}
}
