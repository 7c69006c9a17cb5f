package btrec

import "testing"

func TestSalvageWindowNilCookieAdmitsEverything(t *testing.T) {
	w := newSalvageWindow(nil)
	if got := w.admit(50); got != 50 {
		t.Errorf("admit(50) on nil window = %d, want 50", got)
	}
}

func TestSalvageWindowSkipsLeadingRecords(t *testing.T) {
	cookie := &SalvageCookie{Skip: 5, Take: 10}
	w := newSalvageWindow(cookie)

	if got := w.admit(3); got != 0 {
		t.Errorf("admit(3) within skip region = %d, want 0", got)
	}
	if got := w.admit(4); got != 2 {
		t.Errorf("admit(4) straddling skip boundary = %d, want 2", got)
	}
	if cookie.Done {
		t.Error("Done set before Take is exhausted")
	}
}

func TestSalvageWindowTrimsToTakeAndSetsDone(t *testing.T) {
	cookie := &SalvageCookie{Skip: 0, Take: 5}
	w := newSalvageWindow(cookie)

	if got := w.admit(3); got != 3 {
		t.Fatalf("admit(3) = %d, want 3", got)
	}
	if cookie.Done {
		t.Fatal("Done set early")
	}
	if got := w.admit(10); got != 2 {
		t.Errorf("admit(10) at tail of take window = %d, want 2", got)
	}
	if !cookie.Done {
		t.Error("Done not set after Take is exhausted")
	}
	if got := w.admit(1); got != 0 {
		t.Errorf("admit(1) after Done = %d, want 0", got)
	}
}

func TestSalvageWindowZeroTakeMeansUnbounded(t *testing.T) {
	cookie := &SalvageCookie{Skip: 2, Take: 0}
	w := newSalvageWindow(cookie)

	if got := w.admit(2); got != 0 {
		t.Fatalf("admit(2) within skip = %d, want 0", got)
	}
	if got := w.admit(100); got != 100 {
		t.Errorf("admit(100) with Take=0 = %d, want 100 (unbounded)", got)
	}
	if cookie.Done {
		t.Error("Done should never be set when Take is 0")
	}
}
