package redis

import (
	"testing"
	"time"
)

func TestConfigNormDefaults(t *testing.T) {
	var c Config
	c.norm()
	if c.Addr != "127.0.0.1:6379" {
		t.Fatalf("addr = %q", c.Addr)
	}
	if c.PoolSize != 16 {
		t.Fatalf("pool size = %d", c.PoolSize)
	}
	if c.DialTimeout != 3*time.Second || c.PingTimeout != 3*time.Second {
		t.Fatalf("timeouts = %v / %v", c.DialTimeout, c.PingTimeout)
	}
}

func TestConfigNormKeepsExplicitValues(t *testing.T) {
	c := Config{Addr: "redis:6380", PoolSize: 4, DialTimeout: time.Second, PingTimeout: 2 * time.Second}
	c.norm()
	if c.Addr != "redis:6380" || c.PoolSize != 4 {
		t.Fatalf("overridden: %+v", c)
	}
	if c.DialTimeout != time.Second || c.PingTimeout != 2*time.Second {
		t.Fatalf("timeouts clobbered: %+v", c)
	}
}

func TestCloseRedisBeforeInit(t *testing.T) {
	if err := CloseRedis(); err != nil {
		t.Fatalf("close without init: %v", err)
	}
}
