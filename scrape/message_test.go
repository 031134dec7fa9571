package scrape

import (
	"reflect"
	"testing"
)

func TestNormalizeTickers(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ES1 (D)\n+0.04%", "ES1 (D)\n[PRICE]%"},
		{"ES1 (D)\n+0.05%", "ES1 (D)\n[PRICE]%"},
		{"ES1 (D)\n-0.12%", "ES1 (D)\n[PRICE]%"},
		{"VIX (D)\n+5.23%", "VIX (D)\n[PRICE]%"},
		{"SPY\n+1.45%", "SPY\n[PRICE]%"},
		{"Hello world", "Hello world"},
		{"ES1 (D)\n+0.04%\nSome additional text", "ES1 (D)\n[PRICE]%\nSome additional text"},
	}
	for _, c := range cases {
		if got := normalizeTickers(c.in); got != c.want {
			t.Errorf("normalizeTickers(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// A ticker message whose live price changed between polls must keep the same
// identity, or every price update would be logged as a new message.
func TestIDStableAcrossPriceUpdates(t *testing.T) {
	a := Message{Username: "mas1", Timestamp: "7:45 PM", Text: "ES1 (D)\n+0.04%"}
	b := Message{Username: "mas1", Timestamp: "7:45 PM", Text: "ES1 (D)\n+0.05%"}
	if a.ID() != b.ID() {
		t.Errorf("IDs differ across price update:\n  %q\n  %q", a.ID(), b.ID())
	}
	c := Message{Username: "mas1", Timestamp: "7:45 PM", Text: "something else entirely"}
	if a.ID() == c.ID() {
		t.Errorf("distinct messages share an ID: %q", a.ID())
	}
}

func TestIDTruncatesLongText(t *testing.T) {
	long := make([]rune, 0, 200)
	for i := 0; i < 200; i++ {
		long = append(long, 'é') // multi-byte on purpose
	}
	m := Message{Username: "alice", Timestamp: "t1", Text: string(long)}
	short := Message{Username: "alice", Timestamp: "t1", Text: string(long[:idPrefixRunes])}
	if m.ID() != short.ID() {
		t.Errorf("ID should only consider the first %d runes of text", idPrefixRunes)
	}
}

func TestFilterNewFirstPoll(t *testing.T) {
	seen := NewSeenSet()
	polled := []Message{
		{Username: "alice", Timestamp: "t1", Text: "hi"},
		{Username: "bob", Timestamp: "t2", Text: "yo"},
	}
	fresh := FilterNew(polled, seen)
	if !reflect.DeepEqual(fresh, polled) {
		t.Fatalf("FilterNew = %+v, want both messages in document order", fresh)
	}
}

func TestFilterNewSecondPollOnlyNew(t *testing.T) {
	seen := NewSeenSet()
	first := []Message{
		{Username: "alice", Timestamp: "t1", Text: "hi"},
		{Username: "bob", Timestamp: "t2", Text: "yo"},
	}
	for _, m := range FilterNew(first, seen) {
		seen.Add(m.ID())
	}

	second := append(first, Message{Username: "carol", Timestamp: "t3", Text: "hey"})
	fresh := FilterNew(second, seen)
	if len(fresh) != 1 || fresh[0].Username != "carol" {
		t.Fatalf("FilterNew = %+v, want only carol's message", fresh)
	}
}

func TestFilterNewIdempotent(t *testing.T) {
	seen := NewSeenSet()
	seen.Add(Message{Username: "alice", Timestamp: "t1", Text: "hi"}.ID())
	polled := []Message{
		{Username: "alice", Timestamp: "t1", Text: "hi"},
		{Username: "bob", Timestamp: "t2", Text: "yo"},
	}
	first := FilterNew(polled, seen)
	second := FilterNew(polled, seen)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("FilterNew not idempotent: %+v vs %+v", first, second)
	}
	if seen.Len() != 1 {
		t.Errorf("FilterNew mutated the seen set: len = %d", seen.Len())
	}
}

func TestFilterNewSeenNeverReturned(t *testing.T) {
	seen := NewSeenSet()
	msgs := []Message{
		{Username: "alice", Timestamp: "t1", Text: "hi"},
		{Username: "bob", Timestamp: "t2", Text: "yo"},
		{Username: "carol", Timestamp: "t3", Text: "hey"},
	}
	for _, m := range msgs {
		seen.Add(m.ID())
	}
	if fresh := FilterNew(msgs, seen); len(fresh) != 0 {
		t.Errorf("FilterNew returned already-seen messages: %+v", fresh)
	}
}

func TestFilterNewDropsDuplicateWithinPoll(t *testing.T) {
	seen := NewSeenSet()
	m := Message{Username: "alice", Timestamp: "t1", Text: "hi"}
	fresh := FilterNew([]Message{m, m}, seen)
	if len(fresh) != 1 {
		t.Errorf("FilterNew = %d messages for a duplicated DOM node, want 1", len(fresh))
	}
}
