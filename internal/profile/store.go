package profile

import (
	"context"
	"log"
	"time"
)

// Open returns a PostgresStore when db is configured and a MemoryStore otherwise.
func Open(ctx context.Context, db DatabaseConfig, ttl time.Duration) (Store, error) {
	if !db.Enabled() {
		log.Printf("Profile cache: in memory (ttl %s)", ttl)
		return NewMemoryStore(ttl), nil
	}

	store, err := NewPostgresStore(ctx, db, ttl)
	if err != nil {
		return nil, err
	}
	log.Printf("Profile cache: postgres (ttl %s)", ttl)
	return store, nil
}
