package twitchapi

import "testing"

func TestBackoffScheduleSequenceAndCap(t *testing.T) {
	b := newBackoffSchedule(5)
	want := []int{2, 4, 8, 16, 32}
	for i, w := range want {
		got, ok := b.Next()
		if !ok {
			t.Fatalf("attempt %d: schedule exhausted early", i)
		}
		if int(got.Seconds()) != w {
			t.Fatalf("attempt %d: got %v, want %ds", i, got, w)
		}
	}
	if _, ok := b.Next(); ok {
		t.Fatal("expected schedule to be exhausted after 5 attempts")
	}
}
