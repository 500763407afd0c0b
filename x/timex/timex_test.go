package timex

import (
	"testing"
	"time"
)

func TestElapsed(t *testing.T) {
	start := NowMs()
	if Elapsed(start, 50*time.Millisecond) {
		t.Fatal("Elapsed reported true immediately after start")
	}
	time.Sleep(60 * time.Millisecond)
	if !Elapsed(start, 50*time.Millisecond) {
		t.Fatal("Elapsed reported false after the budget passed")
	}
}

func TestResetAndDrainTimer(t *testing.T) {
	tm := time.NewTimer(time.Hour)
	if !tm.Stop() {
		DrainTimer(tm)
	}

	ResetTimer(tm, 1*time.Millisecond)
	select {
	case <-tm.C:
	case <-time.After(50 * time.Millisecond):
		t.Fatal("timer did not fire after ResetTimer")
	}

	ResetTimer(tm, -1)
	select {
	case <-tm.C:
	case <-time.After(50 * time.Millisecond):
		t.Fatal("timer did not fire after negative ResetTimer")
	}
}
