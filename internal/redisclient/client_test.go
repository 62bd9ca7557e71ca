package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestNewAppliesDefaults(t *testing.T) {
	c := New(Config{Addr: "127.0.0.1:6379"})
	defer c.Close()

	opts := c.Raw().Options()
	if opts.PoolSize != defaultPoolSize {
		t.Fatalf("pool size = %d, want %d", opts.PoolSize, defaultPoolSize)
	}
	if opts.ReadTimeout != defaultTimeout || opts.DialTimeout != defaultTimeout {
		t.Fatalf("timeouts = %v/%v, want %v", opts.DialTimeout, opts.ReadTimeout, defaultTimeout)
	}

	custom := New(Config{Addr: "127.0.0.1:6379", PoolSize: 3, Timeout: time.Second})
	defer custom.Close()

	if o := custom.Raw().Options(); o.PoolSize != 3 || o.WriteTimeout != time.Second {
		t.Fatalf("config not applied: pool=%d write=%v", o.PoolSize, o.WriteTimeout)
	}
}

func TestPing(t *testing.T) {
	mr := miniredis.RunT(t)

	c := New(Config{Addr: mr.Addr()})
	defer c.Close()

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	mr.Close()

	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping to fail once redis is gone")
	}
}
