package transport

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/winhowes/RemoteData/app/redis"
)

func TestRateLimiterExceedLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour, nil, nil)
	defer rl.Stop()
	ctx := context.Background()
	if !rl.Allow(ctx, "host") || !rl.Allow(ctx, "host") {
		t.Fatal("first two calls should be allowed")
	}
	if rl.Allow(ctx, "host") {
		t.Fatal("third call should be rejected")
	}
	if !rl.Allow(ctx, "other") {
		t.Fatal("keys are counted separately")
	}
}

func TestRateLimiterReset(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond, nil, nil)
	defer rl.Stop()
	ctx := context.Background()
	if !rl.Allow(ctx, "host") {
		t.Fatal("initial call should be allowed")
	}
	if rl.Allow(ctx, "host") {
		t.Fatal("limit should be reached")
	}
	time.Sleep(25 * time.Millisecond)
	if !rl.Allow(ctx, "host") {
		t.Fatal("rate limiter should reset after the window")
	}
}

func TestRateLimiterStopReleasesGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	rl := NewRateLimiter(5, time.Millisecond, nil, nil)
	rl.Stop()
	rl.Stop()
}

func TestRateLimiterDisabled(t *testing.T) {
	var rl *RateLimiter
	if !rl.Allow(context.Background(), "x") {
		t.Fatal("nil limiter should allow")
	}
}

func TestRateLimiterRedis(t *testing.T) {
	srv, cli := net.Pipe()
	defer srv.Close()
	commands := make(chan string, 4)
	go func() {
		br := bufio.NewReader(srv)
		replies := []string{":1\r\n", ":1\r\n", ":2\r\n"}
		for _, reply := range replies {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			n := int(line[1] - '0')
			args := make([]string, n)
			for i := range args {
				br.ReadString('\n')
				a, _ := br.ReadString('\n')
				args[i] = strings.TrimSpace(a)
			}
			commands <- strings.Join(args, " ")
			srv.Write([]byte(reply))
		}
	}()

	pool := redis.NewPool("pipe", time.Second, 1)
	pool.Dial = func(context.Context) (net.Conn, error) { return cli, nil }
	rl := NewRateLimiter(1, time.Minute, pool, nil)
	defer rl.Stop()

	ctx := context.Background()
	if !rl.Allow(ctx, "api.example.com") {
		t.Fatal("first call should be allowed")
	}
	if rl.Allow(ctx, "api.example.com") {
		t.Fatal("second call should be rejected by the shared counter")
	}
	want := []string{
		"INCR remotedata:ratelimit:api.example.com",
		"EXPIRE remotedata:ratelimit:api.example.com 60",
		"INCR remotedata:ratelimit:api.example.com",
	}
	for _, w := range want {
		if got := <-commands; got != w {
			t.Fatalf("command = %q, want %q", got, w)
		}
	}
}
