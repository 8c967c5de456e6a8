package auth

import "testing"

func TestSessionHubFanOut(t *testing.T) {
	hub := NewSessionHub()
	defer hub.Close()

	ch1, cancel1 := hub.Subscribe()
	defer cancel1()
	ch2, cancel2 := hub.Subscribe()
	defer cancel2()

	hub.Publish(SessionEvent{Type: SessionLogin, UserID: "u1"})

	for _, ch := range []<-chan SessionEvent{ch1, ch2} {
		evt := <-ch
		if evt.Type != SessionLogin || evt.UserID != "u1" {
			t.Fatalf("unexpected event %+v", evt)
		}
	}
}

func TestSessionHubCancelClosesChannel(t *testing.T) {
	hub := NewSessionHub()
	defer hub.Close()

	ch, cancel := hub.Subscribe()
	cancel()
	cancel() // idempotent

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
	// publishing after cancel must not panic
	hub.Publish(SessionEvent{Type: SessionLogout, UserID: "u1"})
}

func TestSessionHubClose(t *testing.T) {
	hub := NewSessionHub()
	ch, _ := hub.Subscribe()
	hub.Close()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after hub close")
	}
	// subscribing after close yields a closed channel
	ch2, cancel := hub.Subscribe()
	defer cancel()
	if _, ok := <-ch2; ok {
		t.Fatal("expected closed channel for post-close subscribe")
	}
}
