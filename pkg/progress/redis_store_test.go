package progress

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"chatvault/pkg/domain"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(RedisStoreConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	return store
}

func TestRedisStoreLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetPending(ctx, "t1"); err != nil {
		t.Fatalf("SetPending: %v", err)
	}
	st, ok, err := store.Get(ctx, "t1")
	if err != nil || !ok {
		t.Fatalf("Get pending = %v, %v", ok, err)
	}
	if st.State != StatePending {
		t.Fatalf("state = %q, want pending", st.State)
	}

	p := domain.TaskProgress{Phase: "download", Current: 3, Total: 12, Percent: 25, Status: "Downloading file 3 of 12..."}
	if err := store.Report(ctx, "t1", p); err != nil {
		t.Fatalf("Report: %v", err)
	}
	st, _, _ = store.Get(ctx, "t1")
	if st.State != StateRunning || st.Progress != p {
		t.Fatalf("running status = %+v, want progress %+v", st, p)
	}

	if err := store.SetCompleted(ctx, "t1", map[string]any{"downloaded": float64(12)}); err != nil {
		t.Fatalf("SetCompleted: %v", err)
	}
	st, _, _ = store.Get(ctx, "t1")
	if st.State != StateCompleted {
		t.Fatalf("state = %q, want completed", st.State)
	}
	if st.Result["downloaded"] != float64(12) {
		t.Fatalf("result = %v, want downloaded=12", st.Result)
	}
}

func TestRedisStoreGetUnknown(t *testing.T) {
	store := newTestStore(t)
	_, ok, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("Get unknown = true, want false")
	}
}

func TestPercent(t *testing.T) {
	cases := []struct {
		current, total, want int
	}{
		{0, 10, 0},
		{3, 12, 25},
		{1, 3, 33},
		{12, 12, 100},
		{5, 0, 0},
	}
	for _, tc := range cases {
		if got := Percent(tc.current, tc.total); got != tc.want {
			t.Fatalf("Percent(%d, %d) = %d, want %d", tc.current, tc.total, got, tc.want)
		}
	}
}

func TestShouldReportCadence(t *testing.T) {
	if !ShouldReport(7, 50) {
		t.Fatalf("ShouldReport(7, 50) = false, want true for small totals")
	}
	reported := 0
	for i := 1; i <= 10000; i++ {
		if ShouldReport(i, 10000) {
			reported++
		}
	}
	if reported > 101 {
		t.Fatalf("reported %d ticks for 10000 items, want <= 101", reported)
	}
	if !ShouldReport(10000, 10000) {
		t.Fatalf("final item must always report")
	}
}
