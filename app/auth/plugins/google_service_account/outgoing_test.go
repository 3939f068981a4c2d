package googlesa

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/winhowes/RemoteData/app/transport"
)

func newAccount(t *testing.T, tokenURL string) (string, *rsa.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	b, _ := json.Marshal(map[string]string{
		"type":         "service_account",
		"client_email": "reader@project.iam.gserviceaccount.com",
		"private_key":  string(pemKey),
		"token_uri":    tokenURL,
	})
	return string(b), &key.PublicKey
}

func TestServiceAccountMintsAndCachesToken(t *testing.T) {
	var calls int32
	var pub *rsa.PublicKey
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Form.Get("grant_type") != "urn:ietf:params:oauth:grant-type:jwt-bearer" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		parts := strings.Split(r.Form.Get("assertion"), ".")
		if len(parts) != 3 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		sig, _ := base64.RawURLEncoding.DecodeString(parts[2])
		sum := sha256.Sum256([]byte(parts[0] + "." + parts[1]))
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, sum[:], sig); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"access_token":"ya29.token","expires_in":3600}`))
	}))
	defer srv.Close()

	creds, key := newAccount(t, srv.URL)
	pub = key

	p := ServiceAccount{}
	cfg, err := p.ParseParams(map[string]interface{}{"credentials": creds})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		r := &transport.Request{Header: http.Header{}}
		if err := p.AddAuth(context.Background(), r, cfg); err != nil {
			t.Fatalf("add auth: %v", err)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer ya29.token" {
			t.Fatalf("unexpected header %q", got)
		}
	}
	if calls != 1 {
		t.Fatalf("expected token to be cached, endpoint called %d times", calls)
	}
}

func TestServiceAccountTokenError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()
	creds, _ := newAccount(t, srv.URL)
	p := ServiceAccount{}
	cfg, _ := p.ParseParams(map[string]interface{}{"credentials": creds, "scopes": []string{"other"}})
	if err := p.AddAuth(context.Background(), &transport.Request{Header: http.Header{}}, cfg); err == nil {
		t.Fatal("expected error from token endpoint")
	}
}

func TestServiceAccountRejectsInvalidCredentials(t *testing.T) {
	p := ServiceAccount{}
	for _, creds := range []string{"not json", `{"type":"authorized_user"}`} {
		cfg, err := p.ParseParams(map[string]interface{}{"credentials": creds})
		if err != nil {
			t.Fatal(err)
		}
		if err := p.AddAuth(context.Background(), &transport.Request{Header: http.Header{}}, cfg); err == nil {
			t.Fatalf("expected error for credentials %q", creds)
		}
	}
}
