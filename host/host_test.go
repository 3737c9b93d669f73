package host

import (
	"errors"
	"testing"
)

func TestErrorChannel(t *testing.T) {
	c := NewErrorChannel()
	if c.Occurred() {
		t.Fatal("new channel should be empty")
	}

	c.Set(nil)
	if c.Occurred() {
		t.Fatal("Set(nil) should not record an error")
	}

	first := errors.New("first")
	second := errors.New("second")
	c.Set(first)
	c.Set(second)
	if !c.Occurred() {
		t.Fatal("expected pending error")
	}
	if c.Err() != second {
		t.Fatalf("Err() = %v, want %v", c.Err(), second)
	}

	if got := c.Fetch(); got != second {
		t.Fatalf("Fetch() = %v, want %v", got, second)
	}
	if c.Occurred() {
		t.Fatal("Fetch should clear the channel")
	}

	c.Set(first)
	c.Clear()
	if c.Err() != nil {
		t.Fatal("Clear should discard the error")
	}
}
