package idgen

import (
	"regexp"
	"sync"
	"testing"
)

// TestNewID tests the NewID function
func TestNewID(t *testing.T) {
	t.Run("returns 20 character ID", func(t *testing.T) {
		id := NewID()
		if len(id) != 20 {
			t.Errorf("NewID() returned ID with length %d, want 20", len(id))
		}
	})

	t.Run("generates unique IDs", func(t *testing.T) {
		ids := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			id := NewID()
			if ids[id] {
				t.Errorf("NewID() generated duplicate ID: %s", id)
			}
			ids[id] = true
		}
	})

	t.Run("generates URL-safe IDs", func(t *testing.T) {
		urlSafe := regexp.MustCompile(`^[a-z0-9]+$`)
		for i := 0; i < 100; i++ {
			if id := NewID(); !urlSafe.MatchString(id) {
				t.Errorf("NewID() returned non-URL-safe ID: %s", id)
			}
		}
	})

	t.Run("concurrent generation", func(t *testing.T) {
		var mu sync.Mutex
		var wg sync.WaitGroup
		ids := make(map[string]bool)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					id := NewID()
					mu.Lock()
					if ids[id] {
						t.Errorf("duplicate ID under concurrency: %s", id)
					}
					ids[id] = true
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
	})
}

// TestNewRequestID tests request id generation
func TestNewRequestID(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	if a == b {
		t.Errorf("NewRequestID() returned duplicate IDs: %s", a)
	}
}

// TestNewFileSuffix tests artifact file name suffixes
func TestNewFileSuffix(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-z0-9]{8}$`)
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		s := NewFileSuffix()
		if !pattern.MatchString(s) {
			t.Fatalf("NewFileSuffix() = %q, want 8 lowercase alphanumerics", s)
		}
		if seen[s] {
			t.Fatalf("NewFileSuffix() generated duplicate suffix: %s", s)
		}
		seen[s] = true
	}
}
