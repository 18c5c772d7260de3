package webviz

import (
	"testing"
	"time"
)

func TestPipeDeliversInOrder(t *testing.T) {
	left, right := Pipe()
	received := make(chan uint64, 100)
	err := right.Bind(func(env Envelope, attachments [][]byte) {
		received <- env.ID
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := uint64(0); i < 50; i++ {
		if err := left.Post(Envelope{Topic: "seq", ID: i}, nil); err != nil {
			t.Fatal(err)
		}
	}
	for i := uint64(0); i < 50; i++ {
		select {
		case id := <-received:
			if id != i {
				t.Fatalf("out of order delivery: got %d, want %d", id, i)
			}
		case <-time.After(time.Second):
			t.Fatal("delivery stalled")
		}
	}
}

func TestPipeBindTwice(t *testing.T) {
	left, _ := Pipe()
	hook := func(env Envelope, attachments [][]byte) {}
	if err := left.Bind(hook); err != nil {
		t.Fatal(err)
	}
	if err := left.Bind(hook); err != ErrChannelBound {
		t.Fatalf("expected ErrChannelBound, got %v", err)
	}
}

func TestPipeHoldsUntilBound(t *testing.T) {
	left, right := Pipe()
	if err := left.Post(Envelope{Topic: "early", ID: 7}, nil); err != nil {
		t.Fatal(err)
	}

	received := make(chan Envelope, 1)
	err := right.Bind(func(env Envelope, attachments [][]byte) {
		received <- env
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case env := <-received:
		if env.Topic != "early" || env.ID != 7 {
			t.Fatalf("wrong envelope delivered: %+v", env)
		}
	case <-time.After(time.Second):
		t.Fatal("envelope posted before bind was lost")
	}
}
