package models

import (
	"testing"
	"time"
)

func TestCartAddItem(t *testing.T) {
	cart := &Cart{}

	cart.AddItem("p1", 2)
	if got := cart.Items["p1"].Quantity; got != 2 {
		t.Fatalf("expected quantity 2, got %d", got)
	}

	cart.AddItem("p1", 3)
	if got := cart.Items["p1"].Quantity; got != 5 {
		t.Fatalf("expected increment to 5, got %d", got)
	}

	cart.AddItem("p2", 1)
	if len(cart.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(cart.Items))
	}
}

func TestCartSetQuantity(t *testing.T) {
	cart := &Cart{}
	cart.AddItem("p1", 2)

	if !cart.SetQuantity("p1", 7) {
		t.Fatal("expected SetQuantity to succeed for existing line")
	}
	if got := cart.Items["p1"].Quantity; got != 7 {
		t.Fatalf("expected quantity 7, got %d", got)
	}

	if cart.SetQuantity("missing", 1) {
		t.Fatal("expected SetQuantity to fail for absent product")
	}
	if _, ok := cart.Items["missing"]; ok {
		t.Fatal("SetQuantity must not insert new lines")
	}
}

func TestCartRemoveItemIdempotent(t *testing.T) {
	cart := &Cart{}
	cart.AddItem("p1", 1)

	cart.RemoveItem("p1")
	cart.RemoveItem("p1")
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(cart.Items))
	}
}

func TestCartExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cart := &Cart{ExpiresAt: now.Add(time.Minute)}

	if cart.Expired(now) {
		t.Fatal("cart should be live before its deadline")
	}
	if !cart.Expired(now.Add(time.Minute)) {
		t.Fatal("cart should be expired exactly at its deadline")
	}
	if !cart.Expired(now.Add(2 * time.Minute)) {
		t.Fatal("cart should be expired after its deadline")
	}
}

func TestCartTouchRenewsOnlyWhenNonEmpty(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(time.Hour)
	ttl := 4 * time.Hour

	cart := &Cart{ExpiresAt: deadline}
	cart.Touch(now, ttl)
	if !cart.ExpiresAt.Equal(deadline) {
		t.Fatal("empty cart must not have its expiration renewed")
	}
	if !cart.UpdatedAt.Equal(now) {
		t.Fatal("Touch should always bump updated_at")
	}

	cart.AddItem("p1", 1)
	cart.Touch(now, ttl)
	if !cart.ExpiresAt.Equal(now.Add(ttl)) {
		t.Fatalf("expected renewal to %v, got %v", now.Add(ttl), cart.ExpiresAt)
	}
}

func TestCartTimeRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cart := &Cart{ExpiresAt: now.Add(90 * time.Second)}

	if got := cart.TimeRemaining(now); got != 90 {
		t.Fatalf("expected 90 seconds, got %d", got)
	}
	if got := cart.TimeRemaining(now.Add(time.Hour)); got != 0 {
		t.Fatalf("expected 0 for an expired cart, got %d", got)
	}
}
