package ledger

import "testing"

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	for _, amount := range []float64{0, -0.01, -100} {
		if _, err := Debit(nil, 1, amount, "con_x"); err != ErrInvalidAmount {
			t.Fatalf("Debit(amount=%v) err = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	for _, amount := range []float64{0, -0.01, -100} {
		if _, err := Credit(nil, 1, amount, "top_x"); err != ErrInvalidAmount {
			t.Fatalf("Credit(amount=%v) err = %v, want ErrInvalidAmount", amount, err)
		}
	}
}
