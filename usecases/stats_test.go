package usecases

import (
	"context"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"relay-server/cache"
	"relay-server/entities"
	"relay-server/services"
)

func newStatsFixture(repo *switchableRepo) (*StatsUseCase, *clock) {
	clk := newClock()
	fallback := cache.NewFallbackCache()
	store := services.NewStore(repo, fallback, 100*time.Millisecond)
	loc, err := time.LoadLocation("Europe/Copenhagen")
	if err != nil {
		loc = time.UTC
	}
	return NewStatsUseCase(store, fallback, loc).WithClock(clk.now), clk
}

func TestStatsCapEvictsOldest(t *testing.T) {
	ctx := context.Background()
	uc, clk := newStatsFixture(newSwitchableRepo())

	for i := 0; i < MaxStatsEvents+1; i++ {
		if err := uc.Record(ctx, entities.StatsEvent{EventType: entities.EventLogin}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		clk.advance(time.Millisecond)
	}

	var stored entities.StatsLog
	if _, err := uc.store.Get(ctx, keyStats, &stored); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(stored.Logins) != MaxStatsEvents {
		t.Fatalf("expected %d logins, got %d", MaxStatsEvents, len(stored.Logins))
	}
	first := newClock().now().UnixMilli()
	if stored.Logins[0].Timestamp != first+1 {
		t.Fatalf("oldest event should be evicted, first timestamp %d", stored.Logins[0].Timestamp)
	}
	if stored.Logins[0].ID == "" || stored.Logins[0].UserAgent != "unknown" {
		t.Fatalf("events should get an id and a default user agent: %+v", stored.Logins[0])
	}
}

func TestStatsRejectsUnknownEventType(t *testing.T) {
	uc, _ := newStatsFixture(newSwitchableRepo())
	if err := uc.Record(context.Background(), entities.StatsEvent{EventType: "logout"}); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStatsQuerySummary(t *testing.T) {
	ctx := context.Background()
	uc, clk := newStatsFixture(newSwitchableRepo())
	now := clk.now()

	record := func(ev entities.StatsEvent, age time.Duration) {
		ev.Timestamp = now.Add(-age).UnixMilli()
		if err := uc.Record(ctx, ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	record(entities.StatsEvent{EventType: entities.EventLogin, UserAgent: "panel"}, 10*24*time.Hour)
	record(entities.StatsEvent{EventType: entities.EventLogin, UserAgent: "panel"}, 3*24*time.Hour)
	record(entities.StatsEvent{EventType: entities.EventLogin, UserAgent: "panel"}, time.Hour)
	record(entities.StatsEvent{EventType: entities.EventCommand, CommandType: "manual"}, 2*time.Hour)
	record(entities.StatsEvent{EventType: entities.EventCommand, CommandType: "manual"}, time.Hour)
	record(entities.StatsEvent{EventType: entities.EventCommand, CommandType: "schedule_set"}, 30*time.Minute)

	report, err := uc.Query(ctx)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	s := report.Summary
	if s.TotalLogins != 3 || s.Logins24h != 1 || s.Logins7d != 2 {
		t.Fatalf("unexpected login counts %+v", s)
	}
	if s.TotalCommands != 3 || s.Commands24h != 3 || s.Commands7d != 3 {
		t.Fatalf("unexpected command counts %+v", s)
	}
	if s.CommandTypeBreakdown["manual"] != 2 || s.CommandTypeBreakdown["schedule_set"] != 1 {
		t.Fatalf("unexpected breakdown %v", s.CommandTypeBreakdown)
	}
	if report.RecentCommands[0].CommandType != "schedule_set" {
		t.Fatalf("recent events should be newest first, got %+v", report.RecentCommands)
	}
	if !strings.HasPrefix(report.RecentCommands[0].Time, "05/01/2025, 09:30:00") {
		t.Fatalf("unexpected display time %q", report.RecentCommands[0].Time)
	}
	if report.Storage != "in-memory" {
		t.Fatalf("unexpected storage %q", report.Storage)
	}
}

func TestStatsRecentIsCapped(t *testing.T) {
	ctx := context.Background()
	uc, clk := newStatsFixture(newSwitchableRepo())
	for i := 0; i < RecentStatsEvents+10; i++ {
		_ = uc.Record(ctx, entities.StatsEvent{EventType: entities.EventCommand, CommandType: "manual"})
		clk.advance(time.Second)
	}
	report, _ := uc.Query(ctx)
	if len(report.RecentCommands) != RecentStatsEvents {
		t.Fatalf("expected %d recent commands, got %d", RecentStatsEvents, len(report.RecentCommands))
	}
	if report.RecentCommands[0].Timestamp <= report.RecentCommands[1].Timestamp {
		t.Fatalf("recent commands should be newest first")
	}
}

func TestStatsDegradedLoadDoesNotWritePrimary(t *testing.T) {
	ctx := context.Background()
	repo := newSwitchableRepo()
	uc, _ := newStatsFixture(repo)

	_ = uc.Record(ctx, entities.StatsEvent{EventType: entities.EventLogin})
	writes := repo.writeCount()

	repo.setDown(true)
	if err := uc.Record(ctx, entities.StatsEvent{EventType: entities.EventLogin}); err != nil {
		t.Fatalf("record during outage: %v", err)
	}
	repo.setDown(false)

	if repo.writeCount() != writes {
		t.Fatalf("degraded record must not write the primary store")
	}
	var stored entities.StatsLog
	_, _ = uc.store.Get(ctx, keyStats, &stored)
	if len(stored.Logins) != 1 {
		t.Fatalf("primary should still hold 1 login, got %d", len(stored.Logins))
	}
}

func TestStatsClearAndDump(t *testing.T) {
	ctx := context.Background()
	uc, _ := newStatsFixture(newSwitchableRepo())
	_ = uc.Record(ctx, entities.StatsEvent{EventType: entities.EventLogin})

	dump, err := uc.Dump(ctx)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if dump.StatsIsNull || dump.StatsData == nil || len(dump.StatsData.Logins) != 1 {
		t.Fatalf("unexpected dump %+v", dump)
	}
	if len(dump.Keys) != 1 || dump.Keys[0] != keyStats {
		t.Fatalf("unexpected keys %v", dump.Keys)
	}

	if err := uc.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	report, _ := uc.Query(ctx)
	if report.Summary.TotalLogins != 0 || report.Summary.TotalCommands != 0 {
		t.Fatalf("clear should empty both categories: %+v", report.Summary)
	}
}
