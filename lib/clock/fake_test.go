// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2024, 11, 14, 22, 13, 20, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	want := epoch.Add(5 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockSet(t *testing.T) {
	clock := Fake(epoch)
	earlier := epoch.Add(-time.Hour)
	clock.Set(earlier)
	if got := clock.Now(); !got.Equal(earlier) {
		t.Fatalf("Now() after Set = %v, want %v", got, earlier)
	}
}

func TestFakeClockSleepAdvances(t *testing.T) {
	clock := Fake(epoch)
	clock.Sleep(250 * time.Millisecond)
	clock.Sleep(0)
	clock.Sleep(-time.Second)

	if got, want := clock.Now(), epoch.Add(250*time.Millisecond); !got.Equal(want) {
		t.Errorf("Now() = %v, want %v", got, want)
	}
	if got := clock.Slept(); got != 250*time.Millisecond {
		t.Errorf("Slept() = %v, want 250ms", got)
	}
}

func TestFakeMilli(t *testing.T) {
	clock := FakeMilli(1_700_000_000_000)
	if got := UnixMilli(clock); got != 1_700_000_000_000 {
		t.Errorf("UnixMilli = %d, want 1700000000000", got)
	}
	if got := Date(clock); got != "2023-11-14" {
		t.Errorf("Date = %q, want %q", got, "2023-11-14")
	}
}

func TestDateUsesUTC(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	zone := time.FixedZone("EST", -5*60*60)
	clock := Fake(time.Date(2024, 11, 14, 23, 30, 0, 0, zone))
	if got := Date(clock); got != "2024-11-15" {
		t.Errorf("Date = %q, want %q", got, "2024-11-15")
	}
}

func TestFakeClockConcurrentAdvance(t *testing.T) {
	clock := Fake(epoch)
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
		}()
	}
	wg.Wait()
	if got, want := clock.Now(), epoch.Add(100*time.Millisecond); !got.Equal(want) {
		t.Errorf("Now() = %v, want %v", got, want)
	}
}

func TestRealClockSatisfiesInterface(t *testing.T) {
	var c Clock = Real()
	before := time.Now()
	if c.Now().Before(before) {
		t.Error("Real().Now() went backwards")
	}
}
