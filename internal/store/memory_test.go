package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"binroute/internal/model"
)

func TestMemoryRunLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	run, err := m.CreateRun(ctx, model.Run{TenantID: "t1", Case: "test1", Nodes: 3})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.ID == "" || run.Status != model.RunRunning || run.CreatedAt.IsZero() {
		t.Fatalf("defaults not applied: %+v", run)
	}
	if _, err := m.GetRun(ctx, "t2", run.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other tenant must not see the run, got %v", err)
	}

	best := model.RouteOut{Stops: []int{0, 1, 2, 0, 1, 2, 0}, Cost: 8}
	done, err := m.CompleteRun(ctx, "t1", run.ID, best, best, []model.RunMetrics{{Seed: 4, BestCost: 8}})
	if err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}
	if done.Status != model.RunCompleted || done.Best.Cost != 8 || done.CompletedAt == nil {
		t.Fatalf("unexpected completed run: %+v", done)
	}

	failed, _ := m.CreateRun(ctx, model.Run{TenantID: "t1", Case: "test2"})
	got, err := m.FailRun(ctx, "t1", failed.ID, "boom")
	if err != nil || got.Status != model.RunFailed || got.Error != "boom" {
		t.Fatalf("FailRun: %+v %v", got, err)
	}
	if _, err := m.CompleteRun(ctx, "t1", "missing", best, best, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryListRunsPaging(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var ids []string
	for i := 0; i < 5; i++ {
		c := "a"
		if i%2 == 1 {
			c = "b"
		}
		r, _ := m.CreateRun(ctx, model.Run{TenantID: "t1", Case: c})
		ids = append(ids, r.ID)
	}

	page, next, err := m.ListRuns(ctx, "t1", "", "", 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(page) != 2 || page[0].ID != ids[4] || page[1].ID != ids[3] || next != ids[3] {
		t.Fatalf("first page: %v next=%s", page, next)
	}
	page, next, _ = m.ListRuns(ctx, "t1", "", next, 2)
	if len(page) != 2 || page[0].ID != ids[2] || next != ids[1] {
		t.Fatalf("second page: %v next=%s", page, next)
	}
	page, next, _ = m.ListRuns(ctx, "t1", "", next, 2)
	if len(page) != 1 || page[0].ID != ids[0] || next != "" {
		t.Fatalf("last page: %v next=%s", page, next)
	}

	page, _, _ = m.ListRuns(ctx, "t1", "b", "", 10)
	if len(page) != 2 {
		t.Fatalf("case filter: got %d runs", len(page))
	}
}

func TestMemoryListRunsUnknownCursor(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 0; i < 3; i++ {
		if _, err := m.CreateRun(ctx, model.Run{TenantID: "t1", Case: "a"}); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}
	foreign, _ := m.CreateRun(ctx, model.Run{TenantID: "t2", Case: "a"})

	for _, cursor := range []string{"stale-id", foreign.ID} {
		page, next, err := m.ListRuns(ctx, "t1", "", cursor, 2)
		if err != nil {
			t.Fatalf("ListRuns(%s): %v", cursor, err)
		}
		if len(page) != 0 || next != "" {
			t.Fatalf("cursor %s: want empty page, got %d runs next=%q", cursor, len(page), next)
		}
	}
}

func TestMemorySubscriptions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s, _ := m.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "http://x", Events: []string{model.EventRunCompleted}})
	_, _ = m.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "http://y", Events: []string{model.EventRunFailed}})

	subs, _ := m.GetSubscriptionsForEvent(ctx, "t1", model.EventRunCompleted)
	if len(subs) != 1 || subs[0].ID != s.ID {
		t.Fatalf("GetSubscriptionsForEvent: %+v", subs)
	}
	if err := m.DeleteSubscription(ctx, "t1", s.ID); err != nil {
		t.Fatalf("DeleteSubscription: %v", err)
	}
	if err := m.DeleteSubscription(ctx, "t1", s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	all, next, _ := m.ListSubscriptions(ctx, "t1", "", 10)
	if len(all) != 1 || next != "" {
		t.Fatalf("ListSubscriptions: %+v %s", all, next)
	}
}

func TestMemoryWebhookQueue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	payload := []byte(`{"id":"evt_1","type":"run.completed"}`)
	id, _ := m.EnqueueWebhook(ctx, "t1", "sub", model.EventRunCompleted, "http://x", "s", payload)
	again, _ := m.EnqueueWebhook(ctx, "t1", "sub", model.EventRunCompleted, "http://x", "s", payload)
	if again != id {
		t.Fatalf("duplicate payload enqueued twice")
	}

	due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 {
		t.Fatalf("due: %d", len(due))
	}
	later := time.Now().Add(time.Hour)
	_ = m.MarkWebhookDelivery(ctx, id, false, &later, "503", 503, 3)
	if due, _ = m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 0 {
		t.Fatalf("delivery rescheduled into the future must not be due")
	}
	if err := m.RetryWebhookDelivery(ctx, "t1", id); err != nil {
		t.Fatalf("RetryWebhookDelivery: %v", err)
	}
	if due, _ = m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 1 || due[0].Attempts != 1 {
		t.Fatalf("retry: %+v", due)
	}
	_ = m.FailWebhookDelivery(ctx, id, "gone", 410, 1)
	items, _, _ := m.ListWebhookDeliveries(ctx, "t1", "failed", "", 10)
	if len(items) != 1 || items[0]["responseCode"] != 410 {
		t.Fatalf("ListWebhookDeliveries: %+v", items)
	}
}
