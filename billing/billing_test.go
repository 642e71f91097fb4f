package billing

import (
	"testing"
	"time"
)

func TestElapsedMinutesRoundsUp(t *testing.T) {
	start := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{"zero", 0, 0},
		{"one second", time.Second, 1},
		{"exactly one minute", time.Minute, 1},
		{"sixty one seconds", 61 * time.Second, 2},
		{"just under two minutes", 2*time.Minute - time.Millisecond, 2},
		{"exactly two minutes", 2 * time.Minute, 2},
		{"negative clock skew", -5 * time.Second, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ElapsedMinutes(start, start.Add(tc.elapsed))
			if got != tc.want {
				t.Fatalf("ElapsedMinutes(%v) = %d, want %d", tc.elapsed, got, tc.want)
			}
		})
	}
}

func TestChargeFullBalance(t *testing.T) {
	// 61 seconds at 4.00/min bills 2 minutes = 8.00, balance 50.00 covers it.
	start := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	minutes := ElapsedMinutes(start, start.Add(61*time.Second))
	raw := Charge(minutes, 4.00)
	if raw != 8.00 {
		t.Fatalf("Charge(%d, 4.00) = %v, want 8.00", minutes, raw)
	}
	charged := Settle(raw, 50.00)
	if charged != 8.00 {
		t.Fatalf("Settle(8.00, 50.00) = %v, want 8.00", charged)
	}
	if got := 50.00 - charged; got != 42.00 {
		t.Fatalf("balance after = %v, want 42.00", got)
	}
}

func TestSettlePartialCharge(t *testing.T) {
	// Raw charge 8.00 against a 5.00 balance settles at 5.00, draining it.
	charged := Settle(8.00, 5.00)
	if charged != 5.00 {
		t.Fatalf("Settle(8.00, 5.00) = %v, want 5.00", charged)
	}
	if got := 5.00 - charged; got != 0 {
		t.Fatalf("balance after = %v, want 0", got)
	}
}

func TestSettleEdges(t *testing.T) {
	cases := []struct {
		name      string
		requested float64
		balance   float64
		want      float64
	}{
		{"zero requested", 0, 10, 0},
		{"negative requested", -1, 10, 0},
		{"zero balance", 4, 0, 0},
		{"negative balance", 4, -2, 0},
		{"exact cover", 4, 4, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Settle(tc.requested, tc.balance); got != tc.want {
				t.Fatalf("Settle(%v, %v) = %v, want %v", tc.requested, tc.balance, got, tc.want)
			}
		})
	}
}

func TestChargeEdges(t *testing.T) {
	if got := Charge(0, 4.00); got != 0 {
		t.Fatalf("Charge(0, 4.00) = %v, want 0", got)
	}
	if got := Charge(3, 0); got != 0 {
		t.Fatalf("Charge(3, 0) = %v, want 0", got)
	}
	if got := Charge(3, 1.99); got != 5.97 {
		t.Fatalf("Charge(3, 1.99) = %v, want 5.97", got)
	}
}
