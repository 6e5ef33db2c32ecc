package cache

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	host, portStr, err := net.SplitHostPort(mr.Addr())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	svc, err := NewCacheService(CacheConfig{Host: host, Port: port}, nil)
	if err != nil {
		t.Fatalf("NewCacheService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc, mr
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSetGetDel(t *testing.T) {
	svc, mr := newTestCache(t)
	ctx := context.Background()

	if err := svc.Set(ctx, "k", payload{Name: "a", Count: 3}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var got payload
	if err := svc.Get(ctx, "k", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "a" || got.Count != 3 {
		t.Fatalf("got %+v", got)
	}
	if ttl := mr.TTL("k"); ttl != time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	if err := svc.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	var miss payload
	if err := svc.Get(ctx, "k", &miss); err != nil {
		t.Fatalf("Get after Del: %v", err)
	}
	if miss.Name != "" {
		t.Fatalf("miss should leave dest untouched, got %+v", miss)
	}
}

func TestExpiry(t *testing.T) {
	svc, mr := newTestCache(t)
	ctx := context.Background()
	if err := svc.Set(ctx, "short", payload{Name: "x"}, time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Second)
	var got payload
	if err := svc.Get(ctx, "short", &got); err != nil || got.Name != "" {
		t.Fatalf("expected expired key, got %+v err=%v", got, err)
	}
}

func TestCorruptValue(t *testing.T) {
	svc, mr := newTestCache(t)
	if err := mr.Set("bad", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var got payload
	if err := svc.Get(context.Background(), "bad", &got); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestConnectFailure(t *testing.T) {
	if _, err := NewCacheService(CacheConfig{Host: "127.0.0.1", Port: 1}, nil); err == nil {
		t.Fatalf("expected ping failure")
	}
	if _, err := NewCacheService(CacheConfig{}, nil); err == nil {
		t.Fatalf("expected missing host error")
	}
}
