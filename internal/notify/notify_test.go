package notify

import (
	"testing"
	"time"
)

func TestCenterRingAndRecent(t *testing.T) {
	var published []Notification
	c := NewCenter(3, PublisherFunc(func(n Notification) { published = append(published, n) }))
	base := time.Unix(1000, 0)
	tick := 0
	c.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	c.Info("one")
	c.Error("two")
	c.Info("three")
	c.Info("four")

	got := c.Recent(time.Time{})
	if len(got) != 3 {
		t.Fatalf("recent = %d, want 3", len(got))
	}
	if got[0].Message != "two" || got[2].Message != "four" {
		t.Errorf("order = %q %q %q", got[0].Message, got[1].Message, got[2].Message)
	}
	if got[0].Level != LevelError {
		t.Errorf("level = %q", got[0].Level)
	}
	if len(published) != 4 {
		t.Errorf("published %d, want 4", len(published))
	}
	if published[0].ID == "" || published[0].ID == published[1].ID {
		t.Error("ids must be unique and non-empty")
	}

	since := got[1].At
	if later := c.Recent(since); len(later) != 1 || later[0].Message != "four" {
		t.Errorf("recent since = %+v", later)
	}
}

func TestCenterWithoutPublisher(t *testing.T) {
	c := NewCenter(0, nil)
	n := c.Info("saved")
	if n.Message != "saved" || n.Ago() == "" {
		t.Errorf("notification = %+v", n)
	}
}
