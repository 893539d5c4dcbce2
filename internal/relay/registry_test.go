package relay

import (
	"testing"
	"time"
)

func TestRegistry_RegisterAndRemove(t *testing.T) {
	reg := NewRegistry(4)

	gameCh, err := reg.Register("42")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Len() != 1 {
		t.Errorf("len = %d, want 1", reg.Len())
	}

	if _, err := reg.Register("42"); err == nil {
		t.Error("want an error registering an in-use code")
	}

	reg.Remove("42")
	if reg.Len() != 0 {
		t.Errorf("len after remove = %d, want 0", reg.Len())
	}
	if _, open := <-gameCh; open {
		t.Error("game channel should be closed after Remove")
	}

	// Removing an absent code is a no-op.
	reg.Remove("42")
}

func TestRegistry_AttachTelephonyAtMostOnce(t *testing.T) {
	reg := NewRegistry(4)
	if _, err := reg.Register("42"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	chX := make(chan Message, 4)
	chY := make(chan Message, 4)

	if _, ok := reg.AttachTelephony("42", chX); !ok {
		t.Fatal("first attach should succeed")
	}
	if _, ok := reg.AttachTelephony("42", chY); ok {
		t.Fatal("second attach should be a no-op returning false")
	}

	if !reg.ForwardToTelephony("42", Text("hello caller")) {
		t.Fatal("forward to telephony should deliver")
	}
	select {
	case m := <-chX:
		if string(m.Data) != "hello caller" {
			t.Errorf("X received %q, want %q", m.Data, "hello caller")
		}
	default:
		t.Error("message not delivered to first-attached channel X")
	}
	select {
	case m := <-chY:
		t.Errorf("channel Y received %q, want nothing", m.Data)
	default:
	}
}

func TestRegistry_AttachToUnknownCodeFails(t *testing.T) {
	reg := NewRegistry(4)
	if _, ok := reg.AttachTelephony("7", make(chan Message, 1)); ok {
		t.Error("attach to unregistered code should fail")
	}
}

func TestRegistry_ForwardToGame(t *testing.T) {
	reg := NewRegistry(4)
	gameCh, err := reg.Register("7")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if !reg.ForwardToGame("7", Text("first")) {
		t.Fatal("forward should deliver")
	}
	if reg.ForwardToGame("9", Text("nope")) {
		t.Error("forward to unregistered code should report false")
	}

	m := <-gameCh
	if string(m.Data) != "first" {
		t.Errorf("received %q, want %q", m.Data, "first")
	}

	reg.Remove("7")
	if reg.ForwardToGame("7", Text("late")) {
		t.Error("forward after remove should report false")
	}
}

func TestRegistry_ForwardPreservesSendOrder(t *testing.T) {
	reg := NewRegistry(16)
	gameCh, err := reg.Register("7")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	want := []string{"a", "b", "c", "d"}
	for _, s := range want {
		if !reg.ForwardToGame("7", Text(s)) {
			t.Fatalf("forward %q failed", s)
		}
	}
	for i, s := range want {
		m := <-gameCh
		if string(m.Data) != s {
			t.Errorf("message %d = %q, want %q", i, m.Data, s)
		}
	}
}

func TestRegistry_ForwardDropsWhenBufferFull(t *testing.T) {
	reg := NewRegistry(1)
	if _, err := reg.Register("7"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if !reg.ForwardToGame("7", Text("kept")) {
		t.Fatal("first forward should deliver")
	}
	if reg.ForwardToGame("7", Text("dropped")) {
		t.Error("forward onto a full channel should report false, not block")
	}
}

func TestRegistry_CodesExcludesMatchedEntries(t *testing.T) {
	reg := NewRegistry(4)
	for _, code := range []string{"9", "1", "5"} {
		if _, err := reg.Register(code); err != nil {
			t.Fatalf("Register %q: %v", code, err)
		}
	}

	got := reg.Codes()
	want := []string{"1", "5", "9"}
	if len(got) != len(want) {
		t.Fatalf("codes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("codes = %v, want sorted %v", got, want)
		}
	}

	if _, ok := reg.AttachTelephony("5", make(chan Message, 1)); !ok {
		t.Fatal("attach failed")
	}
	got = reg.Codes()
	if len(got) != 2 || got[0] != "1" || got[1] != "9" {
		t.Errorf("codes after match = %v, want [1 9]", got)
	}
}

func TestRegistry_AttachReportsWait(t *testing.T) {
	reg := NewRegistry(4)
	if _, err := reg.Register("3"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	waited, ok := reg.AttachTelephony("3", make(chan Message, 1))
	if !ok {
		t.Fatal("attach failed")
	}
	if waited <= 0 {
		t.Errorf("waited = %v, want > 0", waited)
	}
}
