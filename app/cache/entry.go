package cache

import (
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/winhowes/RemoteData/app/transport"
)

type entry struct {
	Status   int                 `cbor:"status"`
	Header   map[string][]string `cbor:"header,omitempty"`
	Body     []byte              `cbor:"body"`
	StoredAt int64               `cbor:"stored_at"`
}

// codec serializes responses as deterministic CBOR compressed with zstd.
type codec struct {
	enc  cbor.EncMode
	dec  cbor.DecMode
	zenc *zstd.Encoder
	zdec *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dec, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		return nil, err
	}
	zenc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	zdec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &codec{enc: enc, dec: dec, zenc: zenc, zdec: zdec}, nil
}

func (c *codec) encode(r *transport.Response) ([]byte, error) {
	b, err := c.enc.Marshal(entry{
		Status:   r.StatusCode,
		Header:   r.Header,
		Body:     r.Body,
		StoredAt: r.StoredAt.UnixNano(),
	})
	if err != nil {
		return nil, err
	}
	return c.zenc.EncodeAll(b, nil), nil
}

func (c *codec) decode(b []byte) (*transport.Response, error) {
	raw, err := c.zdec.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress cache entry: %w", err)
	}
	var e entry
	if err := c.dec.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &transport.Response{
		StatusCode: e.Status,
		Header:     http.Header(e.Header),
		Body:       e.Body,
		StoredAt:   time.Unix(0, e.StoredAt),
		CacheHit:   true,
	}, nil
}
