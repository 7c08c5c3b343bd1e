package domain

import "testing"

func TestStatusFromSignal(t *testing.T) {
	cases := []struct {
		signal     int
		want       Status
		actionable bool
	}{
		{1, StatusClean, false},
		{-1, StatusMalicious, true},
		{0, StatusUnknown, true},
	}
	for _, tc := range cases {
		got, err := StatusFromSignal(tc.signal)
		if err != nil {
			t.Fatalf("StatusFromSignal(%d) returned error: %v", tc.signal, err)
		}
		if got != tc.want {
			t.Fatalf("StatusFromSignal(%d) = %v, want %v", tc.signal, got, tc.want)
		}
		if got.Actionable() != tc.actionable {
			t.Fatalf("%v.Actionable() = %v, want %v", got, got.Actionable(), tc.actionable)
		}
	}

	if _, err := StatusFromSignal(2); err == nil {
		t.Fatal("expected error for unknown signal")
	}
}
