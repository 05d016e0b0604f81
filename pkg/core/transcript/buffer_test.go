package transcript

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func textItem(content string) DisplayItem {
	return DisplayItem{
		Content:   content,
		Kind:      KindText,
		Speaker:   SpeakerTeacher,
		Timestamp: time.Now(),
	}
}

func TestAppendAssignsStableIDs(t *testing.T) {
	b := NewBuffer(nil, 0)

	id1 := b.Append(textItem("one"))
	id2 := b.Append(textItem("two"))
	if id1 == "" || id2 == "" || id1 == id2 {
		t.Fatalf("ids not assigned or not unique: %q %q", id1, id2)
	}

	preset := textItem("three")
	preset.ID = "item_custom"
	if got := b.Append(preset); got != "item_custom" {
		t.Fatalf("preset id overwritten: %q", got)
	}
}

func TestItemsPreservesAppendOrder(t *testing.T) {
	b := NewBuffer(nil, 0)

	const n = 200
	for i := 0; i < n; i++ {
		b.Append(textItem(fmt.Sprintf("item %d", i)))
	}

	items := b.Items()
	if len(items) != n {
		t.Fatalf("len=%d, want %d", len(items), n)
	}
	for i, it := range items {
		if want := fmt.Sprintf("item %d", i); it.Content != want {
			t.Fatalf("items[%d].Content=%q, want %q", i, it.Content, want)
		}
	}
}

func TestItemsReturnsSnapshot(t *testing.T) {
	b := NewBuffer(nil, 0)
	b.Append(textItem("original"))

	snap := b.Items()
	snap[0].Content = "mutated"

	if got := b.Items()[0].Content; got != "original" {
		t.Fatalf("snapshot mutation leaked into buffer: %q", got)
	}
}

func TestSubscriberSeesMutationViaItems(t *testing.T) {
	b := NewBuffer(nil, 0)

	var fromCallback int
	b.Subscribe(func(items []DisplayItem) {
		// Notification happens-after the mutation is reflected in Items.
		fromCallback = len(b.Items())
	})

	b.Append(textItem("one"))
	if fromCallback != 1 {
		t.Fatalf("Items() inside callback saw %d items, want 1", fromCallback)
	}
}

func TestSubscribeDoesNotReplayHistory(t *testing.T) {
	b := NewBuffer(nil, 0)
	b.Append(textItem("old"))

	calls := 0
	b.Subscribe(func([]DisplayItem) { calls++ })
	if calls != 0 {
		t.Fatalf("subscribe replayed history: %d calls", calls)
	}

	b.Append(textItem("new"))
	if calls != 1 {
		t.Fatalf("calls=%d after append, want 1", calls)
	}
}

func TestUnsubscribeRemovesExactlyOne(t *testing.T) {
	b := NewBuffer(nil, 0)

	var a, c int
	unsubA := b.Subscribe(func([]DisplayItem) { a++ })
	b.Subscribe(func([]DisplayItem) { c++ })

	unsubA()
	unsubA() // second call is a no-op
	b.Append(textItem("x"))

	if a != 0 {
		t.Fatalf("unsubscribed callback invoked %d times", a)
	}
	if c != 1 {
		t.Fatalf("remaining callback invoked %d times, want 1", c)
	}
}

func TestNotificationCarriesFullSequence(t *testing.T) {
	b := NewBuffer(nil, 0)

	var last []DisplayItem
	b.Subscribe(func(items []DisplayItem) { last = items })

	b.Append(textItem("one"))
	b.Append(textItem("two"))

	if len(last) != 2 {
		t.Fatalf("notification carried %d items, want full sequence of 2", len(last))
	}
	if last[0].Content != "one" || last[1].Content != "two" {
		t.Fatalf("notification order wrong: %q %q", last[0].Content, last[1].Content)
	}
}

func TestClearNotifiesEmpty(t *testing.T) {
	b := NewBuffer(nil, 0)
	b.Append(textItem("one"))

	notified := false
	var lastLen int
	b.Subscribe(func(items []DisplayItem) {
		notified = true
		lastLen = len(items)
	})

	b.Clear()
	if !notified {
		t.Fatalf("clear did not notify")
	}
	if lastLen != 0 {
		t.Fatalf("clear notification carried %d items, want 0", lastLen)
	}
	if b.Len() != 0 {
		t.Fatalf("Len=%d after clear, want 0", b.Len())
	}
}

func TestConcurrentAppendKeepsAllItems(t *testing.T) {
	b := NewBuffer(nil, 0)

	var wg sync.WaitGroup
	const writers, each = 4, 50
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				b.Append(textItem(fmt.Sprintf("w%d-%d", w, i)))
			}
		}(w)
	}
	wg.Wait()

	if got := b.Len(); got != writers*each {
		t.Fatalf("Len=%d, want %d", got, writers*each)
	}

	seen := make(map[string]bool)
	for _, it := range b.Items() {
		if seen[it.ID] {
			t.Fatalf("duplicate item id %q", it.ID)
		}
		seen[it.ID] = true
	}
}
