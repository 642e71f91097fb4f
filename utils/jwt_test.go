package utils

import (
	"testing"
	"time"

	"github.com/developeragencia/conselhoscursor-sub001/database"
)

func TestRevokeJTIGuards(t *testing.T) {
	if err := RevokeJTI("", time.Minute); err == nil {
		t.Fatal("empty jti accepted")
	}
	if RedisClient == nil && database.DB == nil {
		if err := RevokeJTI("not-a-real-jti", time.Minute); err == nil {
			t.Fatal("revocation reported success with no store configured")
		}
	}
}
