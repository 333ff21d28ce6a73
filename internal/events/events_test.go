package events

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHubPublishSubscribe(t *testing.T) {
	h := NewHub(nil)
	a, cancelA := h.Subscribe()
	b, cancelB := h.Subscribe()
	defer cancelA()
	defer cancelB()

	h.Publish(Event{Type: TypeCreated, Entity: EntityProject, ID: "p1"})

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case e := <-ch:
			if e.ID != "p1" || e.Type != TypeCreated {
				t.Errorf("%s got %+v", name, e)
			}
			if e.At.IsZero() {
				t.Errorf("%s: At not stamped", name)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: no event", name)
		}
	}
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(nil)
	h.buffer = 1
	slow, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Publish(Event{Type: TypeUpdated, Entity: EntityBox})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if got := len(slow); got != 1 {
		t.Errorf("buffered = %d, want 1", got)
	}
}

func TestHubCancel(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe()
	if h.Subscribers() != 1 {
		t.Fatalf("Subscribers = %d", h.Subscribers())
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	if h.Subscribers() != 0 {
		t.Errorf("Subscribers = %d after cancel", h.Subscribers())
	}
	h.Publish(Event{Type: TypeDeleted})
}

func TestHubClose(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe()
	h.Close()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed by Close")
	}
	cancel()

	late, _ := h.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribe after Close should return a closed channel")
	}
	h.Close()
}

func TestClassify(t *testing.T) {
	root := "/data"
	tests := []struct {
		path, entity, id string
		ok               bool
	}{
		{"/data/projects/abc.json", EntityProject, "abc", true},
		{"/data/provisioners/p1.json", EntityProvisioner, "p1", true},
		{"/data/triggers/t1.json", EntityTrigger, "t1", true},
		{"/data/boxes/boxes.json", EntityBox, "", true},
		{"/data/plugins.json", EntityPlugin, "", true},
		{"/data/exports/x.json", "", "", false},
		{"/data/other.json", "", "", false},
	}
	for _, tt := range tests {
		entity, id, ok := Classify(root, tt.path)
		if entity != tt.entity || id != tt.id || ok != tt.ok {
			t.Errorf("Classify(%s) = %q, %q, %v; want %q, %q, %v",
				tt.path, entity, id, ok, tt.entity, tt.id, tt.ok)
		}
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
	got    chan struct{}
}

func (r *recorder) Publish(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	select {
	case r.got <- struct{}{}:
	default:
	}
}

func TestWatcherPublishesExternalChange(t *testing.T) {
	root := t.TempDir()
	projects := filepath.Join(root, "projects")
	if err := os.MkdirAll(projects, 0750); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{got: make(chan struct{}, 1)}
	ignored := filepath.Join(projects, "mine.json")
	w, err := NewWatcher(root, []string{root, projects}, rec, nil,
		WithDebounce(30*time.Millisecond),
		WithIgnore(func(p string) bool { return p == ignored }))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	for _, name := range []string{"mine.json", ".tmp-123.json", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(projects, name), []byte("{}"), 0640); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(projects, "p42.json")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("{}"), 0640); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-rec.got:
	case <-time.After(3 * time.Second):
		t.Fatal("no event published")
	}
	time.Sleep(100 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 1 {
		t.Fatalf("events = %+v, want exactly one debounced event", rec.events)
	}
	e := rec.events[0]
	if e.Type != TypeExternalChange || e.Entity != EntityProject || e.ID != "p42" {
		t.Errorf("event = %+v", e)
	}
}
