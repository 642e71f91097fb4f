package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateReferenceID creates a ledger reference id with a recognizable
// prefix, e.g. "consultation_7f9c..." for settlement debits.
func GenerateReferenceID(prefix string) string {
	if prefix == "" {
		prefix = "ref"
	}
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}
