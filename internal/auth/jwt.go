package auth

import (
	"encoding/json"
	"time"
)

func jwtExpiry(token string) (time.Time, bool) {
	payload, ok := JWTPayload(token)
	if !ok {
		return time.Time{}, false
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal([]byte(payload), &claims); err != nil || claims.Exp == 0 {
		return time.Time{}, false
	}
	return time.Unix(claims.Exp, 0).UTC(), true
}
