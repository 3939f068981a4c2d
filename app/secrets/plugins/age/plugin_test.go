package plugins

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
	"filippo.io/age/armor"
)

func writeEncrypted(t *testing.T, dir string, armored bool) (secretPath, identityPath string) {
	t.Helper()
	id, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	identityPath = filepath.Join(dir, "keys.txt")
	if err := os.WriteFile(identityPath, []byte(id.String()+"\n"), 0600); err != nil {
		t.Fatalf("write identity: %v", err)
	}

	var buf bytes.Buffer
	var dst io.WriteCloser = nopCloser{&buf}
	if armored {
		dst = armor.NewWriter(&buf)
	}
	w, err := age.Encrypt(dst, id.Recipient())
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := io.WriteString(w, "s3cret\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := dst.Close(); err != nil {
		t.Fatalf("close armor: %v", err)
	}
	secretPath = filepath.Join(dir, "token.age")
	if err := os.WriteFile(secretPath, buf.Bytes(), 0600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	return secretPath, identityPath
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func TestAgePluginExplicitIdentity(t *testing.T) {
	secret, identity := writeEncrypted(t, t.TempDir(), false)
	got, err := agePlugin{}.Load(context.Background(), secret+"#"+identity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "s3cret" {
		t.Fatalf("expected 's3cret', got %q", got)
	}
}

func TestAgePluginArmoredWithEnvIdentity(t *testing.T) {
	secret, identity := writeEncrypted(t, t.TempDir(), true)
	t.Setenv(IdentityEnv, identity)
	got, err := agePlugin{}.Load(context.Background(), secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "s3cret" {
		t.Fatalf("expected 's3cret', got %q", got)
	}
}

func TestAgePluginNoIdentity(t *testing.T) {
	t.Setenv(IdentityEnv, "")
	if _, err := (agePlugin{}).Load(context.Background(), "/does/not/matter"); err == nil {
		t.Fatal("expected error without identity")
	}
}
