package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatdb/pkg/config"
	"chatdb/pkg/models"
	"chatdb/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestParsePeriod(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"", 30 * 24 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"24h", 24 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"bogus", 0, true},
		{"-1h", 0, true},
		{"-2d", 0, true},
	}
	for _, c := range cases {
		got, err := parsePeriod(c.in)
		if c.err {
			if err == nil {
				t.Fatalf("parsePeriod(%q): want error", c.in)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Fatalf("parsePeriod(%q) = %v, %v; want %v", c.in, got, err, c.want)
		}
	}
}

func TestRunImmediatePurgesOldMessages(t *testing.T) {
	s := newTestStore(t)

	old, err := s.CreateMessage(models.Message{Body: "old", TS: time.Now().Add(-40 * 24 * time.Hour).UnixNano()})
	if err != nil {
		t.Fatalf("create old: %v", err)
	}
	fresh, err := s.CreateMessage(models.Message{Body: "fresh"})
	if err != nil {
		t.Fatalf("create fresh: %v", err)
	}
	c, err := s.CreateChat(old.ID, fresh.ID)
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}

	cfg := config.RetentionConfig{Enabled: true, Period: "30d"}
	if err := RunImmediate(cfg, s); err != nil {
		t.Fatalf("run: %v", err)
	}

	if _, err := s.GetMessage(old.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("old message survived: %v", err)
	}
	if _, err := s.GetMessage(fresh.ID); err != nil {
		t.Fatalf("fresh message purged: %v", err)
	}
	// purge goes through the store, so the chat is unlinked not dangling
	refs, err := s.ChatMessages(c.ID)
	if err != nil {
		t.Fatalf("chat messages: %v", err)
	}
	if len(refs) != 1 || refs[0] != fresh.ID {
		t.Fatalf("chat refs after purge: %v", refs)
	}
}

func TestDryRunDeletesNothing(t *testing.T) {
	s := newTestStore(t)
	old, _ := s.CreateMessage(models.Message{Body: "old", TS: 1})

	cfg := config.RetentionConfig{Enabled: true, Period: "1d", DryRun: true}
	if err := RunImmediate(cfg, s); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := s.GetMessage(old.ID); err != nil {
		t.Fatalf("dry run deleted message: %v", err)
	}
}

func TestMinPeriodClampsShortPeriods(t *testing.T) {
	s := newTestStore(t)
	recent, _ := s.CreateMessage(models.Message{Body: "recent", TS: time.Now().Add(-2 * time.Hour).UnixNano()})

	cfg := config.RetentionConfig{Enabled: true, Period: "1h", MinPeriod: "24h"}
	if err := RunImmediate(cfg, s); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := s.GetMessage(recent.ID); err != nil {
		t.Fatalf("clamped period still purged recent message: %v", err)
	}
}

func TestBatchSizeCapsRun(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		if _, err := s.CreateMessage(models.Message{Body: "old", TS: int64(i + 1)}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	cfg := config.RetentionConfig{Enabled: true, Period: "1d", BatchSize: 2}
	if err := RunImmediate(cfg, s); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := len(s.MessagesBefore(time.Now().UnixNano(), 0)); got != 3 {
		t.Fatalf("want 3 messages left, got %d", got)
	}
}

func TestStartValidation(t *testing.T) {
	s := newTestStore(t)

	cancel, err := Start(context.Background(), config.RetentionConfig{Enabled: false}, s)
	if err != nil {
		t.Fatalf("disabled start: %v", err)
	}
	cancel()

	if _, err := Start(context.Background(), config.RetentionConfig{Enabled: true, Cron: "not a cron"}, s); err == nil {
		t.Fatalf("invalid cron accepted")
	}
	if _, err := Start(context.Background(), config.RetentionConfig{Enabled: true, Cron: "0 2 * * *", Period: "nope"}, s); err == nil {
		t.Fatalf("invalid period accepted")
	}

	cancel, err = Start(context.Background(), config.RetentionConfig{Enabled: true, Period: "30d"}, s)
	if err != nil {
		t.Fatalf("default cron start: %v", err)
	}
	cancel()
}
