package plugins

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/winhowes/RemoteData/app/secrets"
)

// IdentityEnv names the variable holding the default identity file path.
const IdentityEnv = "AGE_IDENTITY_FILE"

// agePlugin decrypts age-encrypted files. The identifier is the encrypted
// file path, optionally followed by #<identity file>. Without an explicit
// identity file the path in $AGE_IDENTITY_FILE is used.
type agePlugin struct{}

func (agePlugin) Prefix() string { return "age" }

func (agePlugin) Load(ctx context.Context, id string) (string, error) {
	path, identityFile := id, os.Getenv(IdentityEnv)
	if i := strings.LastIndex(id, "#"); i >= 0 {
		path, identityFile = id[:i], id[i+1:]
	}
	if identityFile == "" {
		return "", fmt.Errorf("no age identity file for %s", path)
	}

	keys, err := os.Open(identityFile)
	if err != nil {
		return "", err
	}
	defer keys.Close()
	identities, err := age.ParseIdentities(keys)
	if err != nil {
		return "", fmt.Errorf("parse identities: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var src io.Reader = bytes.NewReader(data)
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(armor.Header)) {
		src = armor.NewReader(bufio.NewReader(bytes.NewReader(data)))
	}
	r, err := age.Decrypt(src, identities...)
	if err != nil {
		return "", fmt.Errorf("decrypt %s: %w", path, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func init() { secrets.Register(agePlugin{}) }
