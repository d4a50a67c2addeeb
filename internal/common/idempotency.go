package common

import (
	"context"
	"io"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Idem rejects replays of write requests carrying an Idempotency-Key header.
// Checkout and template migration are the endpoints that matter here: a retry
// from a flaky mobile client must not create a second order.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

// idemKey hashes the client-supplied key so arbitrary header content never
// lands verbatim in Redis.
func idemKey(header string) string {
	return "idem:" + Sha256Hex(header)
}

// Middleware claims the key with SETNX before the handler runs. A claimed key
// means this request already happened; the caller gets 409 and must mint a
// fresh key for a genuinely new operation. Requests without the header pass
// straight through.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := idemKey(header)
		claimed, err := i.R.SetNX(r.Context(), key, "locked", i.TTL).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", map[string]any{"error": err.Error()})
			return
		}
		if !claimed {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"error":{"code":"IDEMPOTENT_REPLAY","message":"duplicate request"}}`)
			return
		}

		// Refresh the TTL on the way out; a panicking handler still leaves an
		// expiring key behind rather than a permanent block.
		defer func() {
			_ = i.R.Expire(context.Background(), key, i.TTL).Err()
		}()
		next.ServeHTTP(w, r)
	})
}
