package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestStart_WithoutReportFunction(t *testing.T) {
	s := New("")
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.IsRunning() {
		t.Fatalf("nothing should be scheduled without a report function")
	}
	s.Stop()
}

func TestStart_InvalidSpec(t *testing.T) {
	s := New("not a cron spec")
	s.SetReportFunction(func(context.Context) error { return nil })
	if err := s.Start(); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
}

func TestStart_FiresReport(t *testing.T) {
	s := New("@every 1s")
	fired := make(chan struct{}, 1)
	s.SetReportFunction(func(context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()
	if !s.IsRunning() {
		t.Fatalf("expected a scheduled entry")
	}
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatalf("report was not triggered")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := New(DefaultSpec)
	s.SetReportFunction(func(context.Context) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
}
