package redisx

import "time"

const (
	// Live login session: session:{session_id} -> {"account_id": "...", "expires_at": "..."}
	KeySession = "session:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var TTLDedup = 48 * time.Hour
