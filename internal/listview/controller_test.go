package listview

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/starford/flashdesk/internal/hostapi"
	"github.com/starford/flashdesk/internal/models"
	"github.com/starford/flashdesk/internal/noteservice"
	"github.com/starford/flashdesk/internal/querycache"
	"github.com/starford/flashdesk/internal/testutil"
	"github.com/starford/flashdesk/internal/viewstate"
)

var defs = viewstate.Defaults{Model: "Basic", PageSize: 25}

func setup(t *testing.T) (*testutil.FakeHost, *noteservice.Service, *Controller) {
	t.Helper()
	fake := testutil.NewFakeHost(t)
	cache, err := querycache.New(querycache.Options{FreshFor: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	svc := noteservice.NewService(hostapi.NewClient(fake.URL()), cache)
	c := New(svc, viewstate.Default(defs), nil)
	t.Cleanup(c.Close)
	return fake, svc, c
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNavigate_CommitsItems(t *testing.T) {
	fake, _, c := setup(t)
	fake.Seed("Basic", "Default", map[string]string{"Front": "Q1", "Back": "A1"})

	if got := c.Snapshot().Status; got != StatusIdle {
		t.Fatalf("initial status = %q", got)
	}
	gen := c.Navigate(viewstate.Default(defs))
	snap, err := c.Wait(waitCtx(t), gen)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Status != StatusReady || snap.Pending {
		t.Fatalf("status = %q pending = %v", snap.Status, snap.Pending)
	}
	if len(snap.Items) != 1 || snap.Items[0].Note.Field("Front") != "Q1" {
		t.Fatalf("items = %+v", snap.Items)
	}
}

func TestNavigate_KeepsPreviousItemsWhilePending(t *testing.T) {
	fake, _, c := setup(t)
	fake.Seed("Basic", "Default", map[string]string{"Front": "dog"})
	fake.Seed("Basic", "Default", map[string]string{"Front": "cat"})

	gen := c.Navigate(viewstate.Default(defs))
	if _, err := c.Wait(waitCtx(t), gen); err != nil {
		t.Fatal(err)
	}

	var pendingSnaps []Snapshot
	c.OnChange(func(s Snapshot) {
		if s.Pending {
			pendingSnaps = append(pendingSnaps, s)
		}
	})
	gen = c.Navigate(viewstate.Default(defs).WithSearch("dog"))
	snap, err := c.Wait(waitCtx(t), gen)
	if err != nil {
		t.Fatal(err)
	}
	if len(pendingSnaps) == 0 {
		t.Fatal("expected a pending snapshot")
	}
	if got := len(pendingSnaps[0].Items); got != 2 {
		t.Errorf("pending snapshot shows %d items, want previous 2", got)
	}
	if pendingSnaps[0].Status != StatusFetching {
		t.Errorf("pending status = %q", pendingSnaps[0].Status)
	}
	if len(snap.Items) != 1 {
		t.Errorf("committed %d items, want 1", len(snap.Items))
	}
}

func TestNavigate_OnlyLatestCommits(t *testing.T) {
	fake, _, c := setup(t)
	fake.Seed("Basic", "Default", map[string]string{"Front": "dog"})
	fake.Seed("Basic", "Default", map[string]string{"Front": "cat"})

	c.Navigate(viewstate.Default(defs).WithSearch("d"))
	c.Navigate(viewstate.Default(defs).WithSearch("do"))
	gen := c.Navigate(viewstate.Default(defs).WithSearch("cat"))

	snap, err := c.Wait(waitCtx(t), gen)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Generation != gen {
		t.Errorf("committed generation %d, want %d", snap.Generation, gen)
	}
	if snap.State.Search != "cat" {
		t.Errorf("state search = %q", snap.State.Search)
	}
	if len(snap.Items) != 1 || snap.Items[0].Note.Field("Front") != "cat" {
		t.Errorf("items = %+v", snap.Items)
	}
}

func TestStaleAfterMutation(t *testing.T) {
	fake, svc, c := setup(t)
	noteID, _ := fake.Seed("Basic", "Default", map[string]string{"Front": "Q1", "Back": "A1"})

	gen := c.Navigate(viewstate.Default(defs))
	if _, err := c.Wait(waitCtx(t), gen); err != nil {
		t.Fatal(err)
	}
	if err := svc.UpdateField(context.Background(), noteID, "Front", "Q2"); err != nil {
		t.Fatal(err)
	}
	snap := c.Snapshot()
	if snap.Status != StatusStale {
		t.Fatalf("status = %q, want stale", snap.Status)
	}
	if snap.Items[0].Note.Field("Front") != "Q1" {
		t.Errorf("stale list should keep old data")
	}

	gen = c.Navigate(snap.State)
	snap, err := c.Wait(waitCtx(t), gen)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Status != StatusReady || snap.Items[0].Note.Field("Front") != "Q2" {
		t.Errorf("after refetch: status=%q items=%+v", snap.Status, snap.Items)
	}
}

func TestFailedMutationKeepsReady(t *testing.T) {
	fake, svc, c := setup(t)
	noteID, _ := fake.Seed("Basic", "Default", map[string]string{"Front": "Q1"})
	gen := c.Navigate(viewstate.Default(defs))
	if _, err := c.Wait(waitCtx(t), gen); err != nil {
		t.Fatal(err)
	}

	fake.Fail("/api/notes", http.StatusInternalServerError, "locked")
	if err := svc.UpdateField(context.Background(), noteID, "Front", "Q2"); err == nil {
		t.Fatal("expected error")
	}
	if got := c.Snapshot().Status; got != StatusReady {
		t.Errorf("status = %q, want ready", got)
	}
}

func TestErrorKeepsItemsAndRefreshRecovers(t *testing.T) {
	fake, _, c := setup(t)
	fake.Seed("Basic", "Default", map[string]string{"Front": "Q1"})
	gen := c.Navigate(viewstate.Default(defs))
	if _, err := c.Wait(waitCtx(t), gen); err != nil {
		t.Fatal(err)
	}

	fake.Fail("/api/items", http.StatusInternalServerError, "collection closed")
	gen = c.Refresh()
	snap, _ := c.Wait(waitCtx(t), gen)
	if snap.Status != StatusError || snap.Err == nil {
		t.Fatalf("status = %q err = %v", snap.Status, snap.Err)
	}
	if len(snap.Items) != 1 {
		t.Errorf("prior items should stay visible, got %d", len(snap.Items))
	}

	fake.Recover("/api/items")
	gen = c.Refresh()
	snap, _ = c.Wait(waitCtx(t), gen)
	if snap.Status != StatusReady || snap.Err != nil {
		t.Errorf("status = %q err = %v", snap.Status, snap.Err)
	}
}

func TestSelectionFollowsRefresh(t *testing.T) {
	fake, svc, c := setup(t)
	keep, _ := fake.Seed("Basic", "Default", map[string]string{"Front": "keep"})
	drop, _ := fake.Seed("Basic", "Default", map[string]string{"Front": "drop"}, "gone")

	gen := c.Navigate(viewstate.Default(defs))
	if _, err := c.Wait(waitCtx(t), gen); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Select(keep); !ok {
		t.Fatal("select failed")
	}
	if err := svc.UpdateField(context.Background(), keep, "Front", "kept"); err != nil {
		t.Fatal(err)
	}
	gen = c.Refresh()
	if _, err := c.Wait(waitCtx(t), gen); err != nil {
		t.Fatal(err)
	}
	sel, ok := c.Selected()
	if !ok || sel.Note.Field("Front") != "kept" {
		t.Fatalf("selection not refreshed: %+v ok=%v", sel, ok)
	}

	if _, ok := c.Select(drop); !ok {
		t.Fatal("select failed")
	}
	gen = c.Navigate(viewstate.Default(defs).WithSearch("-tag:gone"))
	if _, err := c.Wait(waitCtx(t), gen); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Selected(); ok {
		t.Error("selection should clear when the item leaves the list")
	}
}

func TestSelectUnknownAndPatch(t *testing.T) {
	fake, _, c := setup(t)
	id, _ := fake.Seed("Basic", "Default", map[string]string{"Front": "Q1"})
	gen := c.Navigate(viewstate.Default(defs))
	if _, err := c.Wait(waitCtx(t), gen); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Select(99999); ok {
		t.Error("selecting an unlisted id should fail")
	}
	if c.Patch(func(*models.Item) {}) {
		t.Error("patch without selection should report false")
	}

	c.Select(id)
	c.Patch(func(it *models.Item) { it.Note.Fields["Front"] = "draft" })
	sel, _ := c.Selected()
	if sel.Note.Field("Front") != "draft" {
		t.Errorf("selected = %q", sel.Note.Field("Front"))
	}
	if got := c.Snapshot().Items[0].Note.Field("Front"); got != "draft" {
		t.Errorf("listed copy = %q", got)
	}
}
