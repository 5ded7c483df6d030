package mesh

import (
	"testing"
	"time"
)

func TestInboxSelectiveReceiveSkipsNonMatching(t *testing.T) {
	ib := NewInbox(NewOutbox(), false)
	ib.saveMessage(1, []byte("aaa"))
	ib.saveMessage(2, []byte("bb"))

	out := make([]byte, 2)
	if rc := ib.Retrieve(2, 2, out); rc != Success {
		t.Fatalf("Retrieve(tag=2): %v", rc)
	}
	if string(out) != "bb" {
		t.Fatalf("got %q, want %q", out, "bb")
	}

	out = make([]byte, 3)
	if rc := ib.Retrieve(1, 3, out); rc != Success {
		t.Fatalf("Retrieve(tag=1): %v", rc)
	}
	if string(out) != "aaa" {
		t.Fatalf("got %q, want %q", out, "aaa")
	}
}

func TestInboxWildcardTagMatchesAnything(t *testing.T) {
	ib := NewInbox(NewOutbox(), false)
	ib.saveMessage(42, []byte("x"))

	out := make([]byte, 1)
	if rc := ib.Retrieve(AnyTag, 1, out); rc != Success {
		t.Fatalf("Retrieve(AnyTag): %v", rc)
	}
}

func TestInboxCloseIsStickyAndTerminal(t *testing.T) {
	ib := NewInbox(NewOutbox(), false)
	ib.saveMessage(1, []byte("a"))
	ib.close()

	out := make([]byte, 1)
	// A differently-tagged Retrieve skips the unmatched message and hits CLOSE.
	if rc := ib.Retrieve(99, 1, out); rc != RemoteFinished {
		t.Fatalf("Retrieve after close: %v, want RemoteFinished", rc)
	}
	// Calling again returns the same terminal code.
	if rc := ib.Retrieve(99, 1, out); rc != RemoteFinished {
		t.Fatalf("second Retrieve after close: %v, want RemoteFinished", rc)
	}
}

func TestInboxRetrieveBlocksUntilDelivered(t *testing.T) {
	ib := NewInbox(NewOutbox(), false)
	done := make(chan Retcode, 1)
	out := make([]byte, 2)
	go func() { done <- ib.Retrieve(1, 2, out) }()

	select {
	case <-done:
		t.Fatal("Retrieve returned before any message was saved")
	case <-time.After(20 * time.Millisecond):
	}

	ib.saveMessage(1, []byte("hi"))
	select {
	case rc := <-done:
		if rc != Success {
			t.Fatalf("Retrieve: %v", rc)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Retrieve did not unblock after saveMessage")
	}
}

func TestInboxRequestMatchedAgainstOutboxIsConsumedSilently(t *testing.T) {
	ob := NewOutbox()
	ob.Push(5, 4) // we already sent this peer a (tag=5, size=4) message
	ib := NewInbox(ob, true)

	ib.saveRequest(5, 4) // peer's probe: it's blocked waiting on exactly that shape
	ib.saveMessage(5, []byte("data"))

	out := make([]byte, 4)
	if rc := ib.Retrieve(5, 4, out); rc != Success {
		t.Fatalf("Retrieve: %v, want Success (REQUEST should resolve silently)", rc)
	}
	if ob.Len() != 0 {
		t.Fatalf("outbox entry should have been consumed by the matching REQUEST")
	}
}

func TestInboxRequestUnmatchedIsDeadlock(t *testing.T) {
	ib := NewInbox(NewOutbox(), true)
	ib.saveRequest(5, 4) // nothing in our outbox can satisfy this

	out := make([]byte, 4)
	if rc := ib.Retrieve(5, 4, out); rc != DeadlockDetected {
		t.Fatalf("Retrieve: %v, want DeadlockDetected", rc)
	}
}

func TestInboxRequestIgnoredWhenDeadlockDetectionDisabled(t *testing.T) {
	ib := NewInbox(NewOutbox(), false)
	ib.saveRequest(5, 4)
	ib.saveMessage(5, []byte("data"))

	out := make([]byte, 4)
	if rc := ib.Retrieve(5, 4, out); rc != Success {
		t.Fatalf("Retrieve: %v, want Success (REQUEST should be skipped, not evaluated)", rc)
	}
}
