package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/freightops/settlements/internal"
	"github.com/redis/go-redis/v9"
)

// Lock held while the first request with a key is still being handled.
const provisionalLockTTL = 60 * time.Second

const idempotencyHeader = "Idempotency-Key"

type idempEntry struct {
	InProgress bool      `json:"in_progress"`
	Code       int       `json:"code"`
	Body       []byte    `json:"body"`
	BodySHA256 string    `json:"body_sha256"`
	CreatedAt  time.Time `json:"created_at"`
}

// Idempotency replays the stored response when a mutating request carries
// an Idempotency-Key already seen from the same operator. Requests without
// the header pass through untouched; generation endpoints are additionally
// idempotent at the storage layer, this guards retried bulk runs from
// doing the period math twice.
func Idempotency(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			operatorID := "anonymous"
			if op, ok := internal.OperatorFromContext(r.Context()); ok {
				operatorID = op.ID
			}

			var body []byte
			if r.Body != nil {
				body, _ = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewBuffer(body))
			}
			sum := sha256.Sum256(body)
			bhash := hex.EncodeToString(sum[:])

			storeKey := "idemp:" + r.Method + ":" + r.URL.Path + ":" + operatorID + ":" + key
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			entry := idempEntry{InProgress: true, BodySHA256: bhash, CreatedAt: time.Now().UTC()}
			raw, _ := json.Marshal(entry)
			acquired, err := rdb.SetNX(ctx, storeKey, raw, provisionalLockTTL).Result()
			if err != nil {
				logger.Error("idempotency store unavailable", "error", err)
				http.Error(w, `{"error":"idempotency store unavailable"}`, http.StatusServiceUnavailable)
				return
			}
			if !acquired {
				cur, err := loadEntry(ctx, rdb, storeKey)
				if err == nil {
					if cur.BodySHA256 != "" && cur.BodySHA256 != bhash {
						http.Error(w, `{"error":"idempotency key reused with different body"}`, http.StatusConflict)
						return
					}
					if !cur.InProgress && cur.Code != 0 {
						w.Header().Set("Content-Type", "application/json")
						w.WriteHeader(cur.Code)
						w.Write(cur.Body)
						return
					}
				}
				http.Error(w, `{"error":"request is already in progress"}`, http.StatusConflict)
				return
			}

			rec := &responseWriter{ResponseWriter: w, body: &bytes.Buffer{}}
			next.ServeHTTP(rec, r)

			code := rec.statusCode
			if code == 0 {
				code = http.StatusOK
			}
			final := idempEntry{
				Code:       code,
				Body:       rec.body.Bytes(),
				BodySHA256: bhash,
				CreatedAt:  time.Now().UTC(),
			}
			raw, _ = json.Marshal(final)
			if err := rdb.Set(context.Background(), storeKey, raw, ttl).Err(); err != nil {
				logger.Error("failed to store idempotent response", "error", err, "key", storeKey)
			}
		})
	}
}

func loadEntry(ctx context.Context, rdb *redis.Client, key string) (idempEntry, error) {
	var entry idempEntry
	raw, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return entry, err
	}
	err = json.Unmarshal(raw, &entry)
	return entry, err
}
