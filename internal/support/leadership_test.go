package support

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNewLeaderLockValidation(t *testing.T) {
	if _, err := NewLeaderLock(nil, "key", time.Second); err == nil {
		t.Fatal("expected error for nil client")
	}

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	if _, err := NewLeaderLock(client, "", time.Second); err == nil {
		t.Fatal("expected error for empty key")
	}

	lock, err := NewLeaderLock(client, "cvsync:leader:test", 0)
	if err != nil {
		t.Fatalf("NewLeaderLock returned error: %v", err)
	}
	if lock.ttl != DefaultLeadershipTTL {
		t.Fatalf("ttl = %v, want %v", lock.ttl, DefaultLeadershipTTL)
	}
}

func TestRenewalInterval(t *testing.T) {
	if got := renewalInterval(45 * time.Second); got != 15*time.Second {
		t.Fatalf("renewalInterval(45s) = %v, want 15s", got)
	}
	if got := renewalInterval(time.Second); got != minRenewalInterval {
		t.Fatalf("renewalInterval(1s) = %v, want %v", got, minRenewalInterval)
	}
}

func TestSleepCtxCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleepCtx(ctx, time.Hour) {
		t.Fatal("sleepCtx should report false on a cancelled context")
	}
	if !sleepCtx(context.Background(), time.Millisecond) {
		t.Fatal("sleepCtx should report true once the delay elapsed")
	}
}

func TestNewHolderIDUnique(t *testing.T) {
	if newHolderID() == newHolderID() {
		t.Fatal("holder ids must differ between calls")
	}
}
