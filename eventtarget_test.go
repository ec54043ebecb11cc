package asyncore

import (
	"reflect"
	"testing"
)

func TestEventTarget_NewEventTarget(t *testing.T) {
	target := NewEventTarget()
	if target.listeners == nil {
		t.Error("listeners map should be initialized")
	}
	if target.nextListenerID != 1 {
		t.Errorf("nextListenerID should be 1, got %d", target.nextListenerID)
	}
}

func TestEventTarget_NilListener(t *testing.T) {
	target := NewEventTarget()
	if id := target.AddEventListener("x", nil); id != 0 {
		t.Errorf("AddEventListener with nil should return 0, got %d", id)
	}
	if n := target.ListenerCount("x"); n != 0 {
		t.Errorf("expected no listeners, got %d", n)
	}
}

func TestEventTarget_Order(t *testing.T) {
	target := NewEventTarget()
	var order []int
	for i := 1; i <= 3; i++ {
		target.AddEventListener("test", func(*Event) { order = append(order, i) })
	}
	target.DispatchEvent(&Event{Type: "test"})
	if !reflect.DeepEqual(order, []int{1, 2, 3}) {
		t.Errorf("unexpected order: %v", order)
	}
}

func TestEventTarget_Once(t *testing.T) {
	target := NewEventTarget()
	var calls int
	target.AddEventListenerOnce("x", func(*Event) { calls++ })
	target.DispatchEvent(&Event{Type: "x"})
	target.DispatchEvent(&Event{Type: "x"})
	if calls != 1 {
		t.Errorf("once listener called %d times", calls)
	}
	if n := target.ListenerCount("x"); n != 0 {
		t.Errorf("once listener still registered (%d)", n)
	}
}

func TestEventTarget_RemoveDuringDispatch(t *testing.T) {
	target := NewEventTarget()
	var calls []string
	var second ListenerID
	target.AddEventListener("x", func(*Event) {
		calls = append(calls, "first")
		target.RemoveEventListenerByID("x", second)
		target.AddEventListener("x", func(*Event) { calls = append(calls, "late") })
	})
	second = target.AddEventListener("x", func(*Event) { calls = append(calls, "second") })

	// the snapshot taken at dispatch is unaffected
	target.DispatchEvent(&Event{Type: "x"})
	if !reflect.DeepEqual(calls, []string{"first", "second"}) {
		t.Errorf("first dispatch: %v", calls)
	}

	calls = nil
	target.DispatchEvent(&Event{Type: "x"})
	if !reflect.DeepEqual(calls, []string{"first", "late"}) {
		t.Errorf("second dispatch: %v", calls)
	}
}

func TestEventTarget_TargetAndArgs(t *testing.T) {
	target := NewEventTarget()
	var got *Event
	target.AddEventListener("x", func(e *Event) { got = e })
	target.DispatchEvent(&Event{Type: "x", Args: []any{"a", 2}})

	if got == nil {
		t.Fatal("listener not called")
	}
	if got.Target != target {
		t.Error("Target not set by DispatchEvent")
	}
	if got.Arg(0) != "a" || got.Arg(1) != 2 {
		t.Errorf("unexpected args: %v", got.Args)
	}
	if got.Arg(2) != nil || got.Arg(-1) != nil {
		t.Error("out of range Arg should be nil")
	}
	if (*Event)(nil).Arg(0) != nil {
		t.Error("Arg on nil event should be nil")
	}

	// must not panic
	target.DispatchEvent(nil)
}
