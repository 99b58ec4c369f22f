package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	hist, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Failed to open history: %v", err)
	}
	t.Cleanup(func() { hist.Close() })
	return hist
}

func TestHistory_Record(t *testing.T) {
	hist := openTestHistory(t)

	duration := 5.5
	revision := "abc123def456"
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(6 * time.Second)
	record := &Record{
		Target:          "staging",
		Operation:       "deploy",
		Hosts:           "web1.example.com",
		Branch:          "master",
		Revision:        &revision,
		Status:          StatusSuccess,
		StartedAt:       started,
		CompletedAt:     &completed,
		DurationSeconds: &duration,
	}

	id, err := hist.Record(context.Background(), record)
	if err != nil {
		t.Fatalf("Failed to record run: %v", err)
	}
	if id == 0 {
		t.Error("Expected non-zero run ID")
	}

	latest, err := hist.Latest(context.Background(), "staging")
	if err != nil {
		t.Fatalf("Failed to get latest run: %v", err)
	}
	if latest.Revision == nil || *latest.Revision != revision {
		t.Errorf("Expected revision %q, got %v", revision, latest.Revision)
	}
	if !latest.StartedAt.Equal(started) {
		t.Errorf("Expected started_at %v, got %v", started, latest.StartedAt)
	}
	if latest.CompletedAt == nil || !latest.CompletedAt.Equal(completed) {
		t.Errorf("Expected completed_at %v, got %v", completed, latest.CompletedAt)
	}
	if latest.ErrorMessage != nil {
		t.Errorf("Expected nil error message, got %q", *latest.ErrorMessage)
	}
}

func TestHistory_DatabasePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	hist, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer hist.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0640 {
		t.Errorf("Expected database permissions 0640, got %o", perm)
	}
}

func TestHistory_Latest(t *testing.T) {
	hist := openTestHistory(t)
	ctx := context.Background()

	msg := "pull failed"
	for _, status := range []string{StatusSuccess, StatusFailed} {
		rec := &Record{Target: "staging", Operation: "deploy", Hosts: "web1", Branch: "master", Status: status}
		if status == StatusFailed {
			rec.ErrorMessage = &msg
		}
		if _, err := hist.Record(ctx, rec); err != nil {
			t.Fatalf("Failed to record run: %v", err)
		}
	}

	latest, err := hist.Latest(ctx, "staging")
	if err != nil {
		t.Fatalf("Failed to get latest run: %v", err)
	}
	if latest == nil {
		t.Fatal("Expected latest run to be non-nil")
	}
	if latest.Status != StatusFailed {
		t.Errorf("Expected latest status 'failed', got %q", latest.Status)
	}
	if latest.ErrorMessage == nil || *latest.ErrorMessage != msg {
		t.Errorf("Expected error message %q, got %v", msg, latest.ErrorMessage)
	}
}

func TestHistory_Latest_NoRecords(t *testing.T) {
	hist := openTestHistory(t)

	latest, err := hist.Latest(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Expected no error for unknown target, got: %v", err)
	}
	if latest != nil {
		t.Errorf("Expected nil for unknown target, got: %v", latest)
	}
}

func TestHistory_Recent(t *testing.T) {
	hist := openTestHistory(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		duration := float64(i)
		if _, err := hist.Record(ctx, &Record{
			Target: "staging", Operation: "deploy", Hosts: "web1", Branch: "master",
			Status: StatusSuccess, DurationSeconds: &duration,
		}); err != nil {
			t.Fatalf("Failed to record run %d: %v", i, err)
		}
	}
	if _, err := hist.Record(ctx, &Record{Target: "production", Operation: "restart", Hosts: "web2", Branch: "master", Status: StatusSuccess}); err != nil {
		t.Fatal(err)
	}

	recent, err := hist.Recent(ctx, "staging", 3)
	if err != nil {
		t.Fatalf("Failed to get run history: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(recent))
	}
	// newest first
	if recent[0].DurationSeconds == nil || *recent[0].DurationSeconds != 4.0 {
		t.Errorf("Expected first record duration 4.0, got %v", recent[0].DurationSeconds)
	}

	all, err := hist.Recent(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 6 || all[0].Target != "production" {
		t.Errorf("Expected 6 records led by production, got %d", len(all))
	}
}

func TestHistory_Status(t *testing.T) {
	hist := openTestHistory(t)
	ctx := context.Background()

	status, err := hist.Status(ctx, "staging", 5)
	if err != nil {
		t.Fatal(err)
	}
	if status.Latest != nil || status.RecentHistory == nil || len(status.RecentHistory) != 0 {
		t.Errorf("Expected empty status, got %+v", status)
	}

	if _, err := hist.Record(ctx, &Record{Target: "staging", Operation: "deploy", Hosts: "web1", Branch: "master", Status: StatusCancelled}); err != nil {
		t.Fatal(err)
	}
	status, err = hist.Status(ctx, "staging", 5)
	if err != nil {
		t.Fatal(err)
	}
	if status.Latest == nil || status.Latest.Status != StatusCancelled || len(status.RecentHistory) != 1 {
		t.Errorf("Unexpected status %+v", status)
	}
}

func TestHistory_LatestPerTarget(t *testing.T) {
	hist := openTestHistory(t)
	ctx := context.Background()

	runs := []Record{
		{Target: "staging", Operation: "deploy", Status: StatusFailed},
		{Target: "staging", Operation: "deploy", Status: StatusSuccess},
		{Target: "production", Operation: "deploy", Status: StatusFailed},
	}
	for i := range runs {
		runs[i].Hosts = "web1"
		runs[i].Branch = "master"
		if _, err := hist.Record(ctx, &runs[i]); err != nil {
			t.Fatal(err)
		}
	}

	status, err := hist.LatestPerTarget(ctx)
	if err != nil {
		t.Fatalf("Failed to get targets status: %v", err)
	}
	if len(status) != 2 {
		t.Errorf("Expected 2 targets, got %d", len(status))
	}
	if status["staging"] == nil || status["staging"].Status != StatusSuccess {
		t.Errorf("Expected staging status 'success', got %v", status["staging"])
	}
	if status["production"] == nil || status["production"].Status != StatusFailed {
		t.Errorf("Expected production status 'failed', got %v", status["production"])
	}
}
