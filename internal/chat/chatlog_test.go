package chat

import "testing"

func TestChatLogAddAndSnapshotOrder(t *testing.T) {
	t.Parallel()

	c := NewChatLog(3)
	c.Add(ChatLogEntry{TS: 1, Peer: 2, Text: "a"})
	c.Add(ChatLogEntry{TS: 2, Peer: 2, Text: "b"})

	snap := c.Snapshot()
	if len(snap) != 2 || snap[0].Text != "a" || snap[1].Text != "b" {
		t.Fatalf("Snapshot = %+v, want [a b] in order", snap)
	}
}

func TestChatLogEvictsOldestOnOverflow(t *testing.T) {
	t.Parallel()

	c := NewChatLog(2)
	c.Add(ChatLogEntry{Text: "first"})
	c.Add(ChatLogEntry{Text: "second"})
	c.Add(ChatLogEntry{Text: "third"})

	if c.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", c.Size())
	}
	first, _ := c.At(0)
	if first.Text != "second" {
		t.Fatalf("oldest retained entry = %q, want %q", first.Text, "second")
	}
}

func TestMarkDeliveredIsIdempotent(t *testing.T) {
	t.Parallel()

	c := NewChatLog(4)
	c.Add(ChatLogEntry{Peer: 9, MsgID: 5, Outgoing: true, Text: "hi"})

	if !c.MarkDelivered(9, 5) {
		t.Fatalf("MarkDelivered first call = false, want true")
	}
	if !c.MarkDelivered(9, 5) {
		t.Fatalf("MarkDelivered second call = false, want true (idempotent)")
	}

	e, _ := c.At(0)
	if !e.Delivered || e.Failed {
		t.Fatalf("entry after MarkDelivered = %+v, want Delivered=true Failed=false", e)
	}
}

func TestMarkFailedDoesNotOverrideDelivered(t *testing.T) {
	t.Parallel()

	c := NewChatLog(4)
	c.Add(ChatLogEntry{Peer: 9, MsgID: 5, Outgoing: true})
	c.MarkDelivered(9, 5)
	c.MarkFailed(9, 5)

	e, _ := c.At(0)
	if !e.Delivered || e.Failed {
		t.Fatalf("entry after MarkFailed-post-Delivered = %+v, want Delivered=true Failed=false", e)
	}
}

func TestMarkDeliveredUnknownEntryReturnsFalse(t *testing.T) {
	t.Parallel()

	c := NewChatLog(4)
	if c.MarkDelivered(1, 1) {
		t.Fatalf("MarkDelivered on empty log = true, want false")
	}
}
