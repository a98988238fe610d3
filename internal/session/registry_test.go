package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"railcat/internal/wizard"
)

func newTestRegistry(t *testing.T, ttl time.Duration) (*Registry, *time.Time) {
	t.Helper()
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	r := NewRegistry(func() *wizard.Wizard {
		return wizard.New(wizard.Options{})
	}, ttl, zaptest.NewLogger(t))
	r.SetClock(func() time.Time { return now })
	t.Cleanup(r.Close)
	return r, &now
}

// TestCreateAndGet 创建后可按 id 获取
func TestCreateAndGet(t *testing.T) {
	r, _ := newTestRegistry(t, time.Minute)

	id, w, err := r.Create(context.Background())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id == "" {
		t.Fatal("Create returned empty id")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}

	got, err := r.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != w {
		t.Error("Get returned a different wizard")
	}
	if got.State().CurrentStep != wizard.StepFile {
		t.Errorf("new session step = %d, want %d", got.State().CurrentStep, wizard.StepFile)
	}

	if _, err := r.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) err = %v, want ErrNotFound", err)
	}
}

// TestDeleteClosesWizard 删除会话会关闭向导
func TestDeleteClosesWizard(t *testing.T) {
	r, _ := newTestRegistry(t, time.Minute)
	id, w, err := r.Create(context.Background())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := r.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !w.Closed() {
		t.Error("wizard should be closed after Delete")
	}
	if err := r.Delete(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
}

// TestSweep 只清理空闲超时的会话
func TestSweep(t *testing.T) {
	r, now := newTestRegistry(t, time.Minute)
	ctx := context.Background()

	idle, idleW, _ := r.Create(ctx)
	*now = now.Add(50 * time.Second)
	active, _, _ := r.Create(ctx)

	*now = now.Add(20 * time.Second)
	if n := r.Sweep(*now); n != 1 {
		t.Fatalf("Sweep closed %d sessions, want 1", n)
	}
	if !idleW.Closed() {
		t.Error("idle wizard should be closed")
	}
	if _, err := r.Get(idle); !errors.Is(err, ErrNotFound) {
		t.Errorf("idle session still present: %v", err)
	}
	if _, err := r.Get(active); err != nil {
		t.Errorf("active session removed: %v", err)
	}
}

// TestSweepDisabled ttl<=0 时不过期
func TestSweepDisabled(t *testing.T) {
	r, now := newTestRegistry(t, 0)
	if _, _, err := r.Create(context.Background()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if n := r.Sweep(now.Add(24 * time.Hour)); n != 0 {
		t.Errorf("Sweep closed %d sessions with ttl disabled", n)
	}
}
