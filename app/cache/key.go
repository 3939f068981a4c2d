package cache

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/winhowes/RemoteData/app/transport"
)

// KeyPrefix namespaces cache keys in shared stores.
const KeyPrefix = "remotedata:"

// Key derives the cache key from the request signature: method, URL and
// body. JSON bodies are normalized so key order does not matter.
func Key(req *transport.Request) string {
	var b bytes.Buffer
	b.WriteString(strings.ToUpper(req.Method))
	b.WriteByte('\n')
	b.WriteString(req.URL)
	b.WriteByte('\n')
	b.Write(normalizeBody(req.Body))
	sum := blake3.Sum256(b.Bytes())
	return KeyPrefix + hex.EncodeToString(sum[:])
}

func normalizeBody(body []byte) []byte {
	if len(body) == 0 || !json.Valid(body) {
		return body
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return body
	}
	out, err := json.Marshal(v)
	if err != nil {
		return body
	}
	return out
}
