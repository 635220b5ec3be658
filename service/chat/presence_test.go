package chat

import (
	"testing"
)

func TestRegisterAndLookup(t *testing.T) {
	d := NewDirectory()
	a1 := NewClient("a1", nil, 4)
	a1.UserID = "alice"
	a2 := NewClient("a2", nil, 4)
	a2.UserID = "alice"
	b1 := NewClient("b1", nil, 4)
	b1.UserID = "bob"

	d.Register(a1)
	d.Register(a2)
	d.Register(b1)

	if got := d.CountFor("alice"); got != 2 {
		t.Fatalf("alice conns = %d, want 2", got)
	}
	if !d.IsOnline("bob") {
		t.Fatalf("bob should be online")
	}
	conns := d.ConnectionsFor([]string{"alice", "bob", "ghost"})
	if len(conns["alice"]) != 2 || len(conns["bob"]) != 1 {
		t.Fatalf("unexpected snapshot: %v", conns)
	}
	if _, ok := conns["ghost"]; ok {
		t.Fatalf("ghost should have no entry")
	}
}

func TestRegisterIdempotent(t *testing.T) {
	d := NewDirectory()
	c := NewClient("c1", nil, 4)
	c.UserID = "alice"
	d.Register(c)
	d.Register(c)
	if got := d.CountFor("alice"); got != 1 {
		t.Fatalf("conns = %d, want 1", got)
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	d := NewDirectory()
	c := NewClient("c1", nil, 4)
	c.UserID = "alice"
	d.Register(c)

	if got := d.Unregister(c); got == nil {
		t.Fatalf("first unregister should return the client")
	}
	if got := d.Unregister(c); got != nil {
		t.Fatalf("second unregister should return nil, got %v", got.ConnID)
	}
	if d.IsOnline("alice") {
		t.Fatalf("alice should be offline")
	}
}

func TestUnregisterNeverRegistered(t *testing.T) {
	d := NewDirectory()
	c := NewClient("c1", nil, 4)
	c.UserID = "alice"
	if got := d.Unregister(c); got != nil {
		t.Fatalf("unregister of unknown conn should return nil")
	}
}

func TestSnapshotSurvivesUnregister(t *testing.T) {
	d := NewDirectory()
	c := NewClient("c1", nil, 4)
	c.UserID = "alice"
	d.Register(c)

	conns := d.ConnectionsFor([]string{"alice"})
	d.Unregister(c)
	if len(conns["alice"]) != 1 {
		t.Fatalf("snapshot should keep the client after unregister")
	}
}
