package payment_job

import (
	"testing"
	"time"

	core "tabpool-backend/core/payment_job"
)

func TestJobCache(t *testing.T) {
	cache := NewJobCache(time.Minute, 2)
	defer cache.Stop()

	job := core.Job{ID: "job-1", Recipients: []core.Identity{"x"}}
	if !cache.Set(job, cache.Epoch()) {
		t.Fatal("Expected fill at the current epoch to be stored")
	}

	got, ok := cache.Get("job-1")
	if !ok {
		t.Fatal("Expected cached job")
	}
	got.Recipients[0] = "mutated"
	again, _ := cache.Get("job-1")
	if again.Recipients[0] != "x" {
		t.Errorf("Expected cached copy to be isolated but got %q", again.Recipients[0])
	}

	cache.Invalidate("job-1")
	if _, ok := cache.Get("job-1"); ok {
		t.Error("Expected entry to be invalidated")
	}

	epoch := cache.Epoch()
	cache.Set(core.Job{ID: "a"}, epoch)
	cache.Set(core.Job{ID: "b"}, epoch)
	cache.Set(core.Job{ID: "c"}, epoch)
	if n := cache.Len(); n != 2 {
		t.Errorf("Expected 2 entries after eviction but got %d", n)
	}
}

func TestJobCacheRejectsFillAcrossInvalidate(t *testing.T) {
	cache := NewJobCache(time.Minute, 10)
	defer cache.Stop()

	epoch := cache.Epoch()
	stale := core.Job{ID: "job-1"}
	// A write to any job lands between the store read and the fill.
	cache.Invalidate("job-1")

	if cache.Set(stale, epoch) {
		t.Error("Expected fill from before the invalidation to be refused")
	}
	if _, ok := cache.Get("job-1"); ok {
		t.Error("Expected no cached entry after refused fill")
	}
	if !cache.Set(stale, cache.Epoch()) {
		t.Error("Expected fill at the new epoch to be stored")
	}
}

func TestJobCacheExpiry(t *testing.T) {
	cache := NewJobCache(20*time.Millisecond, 10)
	defer cache.Stop()

	cache.Set(core.Job{ID: "short"}, cache.Epoch())
	time.Sleep(40 * time.Millisecond)
	if _, ok := cache.Get("short"); ok {
		t.Error("Expected expired entry to be missed")
	}
}
