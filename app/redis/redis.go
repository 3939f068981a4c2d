// Package redis is a minimal RESP client with a pool of idle connections.
// It covers the handful of commands the cache store and rate limiter need.
package redis

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// Reply is a decoded RESP value. Arrays are not needed by any caller.
type Reply struct {
	Kind byte
	Int  int64
	Str  string
	Nil  bool
}

type conn struct {
	net.Conn
	br *bufio.Reader
}

// Pool dials Addr on demand and keeps up to the configured number of idle
// connections.
type Pool struct {
	Addr        string
	DialTimeout time.Duration
	// Dial overrides how connections are opened.
	Dial func(ctx context.Context) (net.Conn, error)

	conns chan *conn
}

// NewPool returns a pool for addr keeping at most size idle connections.
func NewPool(addr string, dialTimeout time.Duration, size int) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{Addr: addr, DialTimeout: dialTimeout, conns: make(chan *conn, size)}
}

func (p *Pool) get(ctx context.Context) (*conn, error) {
	select {
	case c := <-p.conns:
		return c, nil
	default:
	}
	var (
		nc  net.Conn
		err error
	)
	if p.Dial != nil {
		nc, err = p.Dial(ctx)
	} else {
		d := net.Dialer{Timeout: p.DialTimeout}
		nc, err = d.DialContext(ctx, "tcp", p.Addr)
	}
	if err != nil {
		return nil, err
	}
	return &conn{Conn: nc, br: bufio.NewReader(nc)}, nil
}

func (p *Pool) put(c *conn, bad bool) {
	if bad || p.conns == nil {
		c.Close()
		return
	}
	select {
	case p.conns <- c:
	default:
		c.Close()
	}
}

// Do sends one command and reads its reply. Server error replies are
// returned as errors.
func (p *Pool) Do(ctx context.Context, args ...string) (Reply, error) {
	c, err := p.get(ctx)
	if err != nil {
		return Reply{}, err
	}
	if dl, ok := ctx.Deadline(); ok {
		c.SetDeadline(dl)
	} else {
		c.SetDeadline(time.Time{})
	}
	if err := writeCommand(c, args...); err != nil {
		p.put(c, true)
		return Reply{}, err
	}
	r, err := readReply(c.br)
	var serverErr *Error
	p.put(c, err != nil && !errors.As(err, &serverErr))
	return r, err
}

// Close drops all idle connections.
func (p *Pool) Close() {
	if p.conns == nil {
		return
	}
	for {
		select {
		case c := <-p.conns:
			c.Close()
		default:
			return
		}
	}
}

// Get fetches key. The boolean is false when the key does not exist.
func (p *Pool) Get(ctx context.Context, key string) ([]byte, bool, error) {
	r, err := p.Do(ctx, "GET", key)
	if err != nil {
		return nil, false, err
	}
	if r.Nil {
		return nil, false, nil
	}
	return []byte(r.Str), true, nil
}

// SetEX stores val under key with an expiry.
func (p *Pool) SetEX(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	secs := int(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	_, err := p.Do(ctx, "SET", key, string(val), "EX", strconv.Itoa(secs))
	return err
}

// Del removes key.
func (p *Pool) Del(ctx context.Context, key string) error {
	_, err := p.Do(ctx, "DEL", key)
	return err
}

// Incr increments key and returns the new value.
func (p *Pool) Incr(ctx context.Context, key string) (int64, error) {
	r, err := p.Do(ctx, "INCR", key)
	return r.Int, err
}

// Expire sets a timeout on key.
func (p *Pool) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := p.Do(ctx, "EXPIRE", key, strconv.Itoa(int(ttl/time.Second)))
	return err
}

// Error is an error reply sent by the server.
type Error struct{ Msg string }

func (e *Error) Error() string { return "redis error: " + e.Msg }

func writeCommand(w io.Writer, args ...string) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "*%d\r\n", len(args))
	for _, a := range args {
		fmt.Fprintf(&buf, "$%d\r\n%s\r\n", len(a), a)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func readReply(br *bufio.Reader) (Reply, error) {
	prefix, err := br.ReadByte()
	if err != nil {
		return Reply{}, err
	}
	line, err := br.ReadString('\n')
	if err != nil {
		return Reply{}, err
	}
	line = strings.TrimRight(line, "\r\n")
	r := Reply{Kind: prefix}
	switch prefix {
	case '+':
		r.Str = line
	case ':':
		r.Int, err = strconv.ParseInt(line, 10, 64)
	case '-':
		return r, &Error{Msg: line}
	case '$':
		n, perr := strconv.Atoi(line)
		if perr != nil {
			return r, perr
		}
		if n < 0 {
			r.Nil = true
			return r, nil
		}
		buf := make([]byte, n+2)
		if _, err := io.ReadFull(br, buf); err != nil {
			return r, err
		}
		r.Str = string(buf[:n])
	default:
		return r, fmt.Errorf("unexpected reply: %q", prefix)
	}
	return r, err
}
