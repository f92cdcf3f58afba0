package main

import (
	"github.com/redis/go-redis/v9"

	"github.com/shashiranjanraj/qcache/config"
	"github.com/shashiranjanraj/qcache/querycache/kv"
	"github.com/shashiranjanraj/qcache/querycache/store"
)

// openStore builds the Store Façade this CLI invocation operates against:
// Redis by default (same connection config the server process uses, so
// `querycache inspect` sees exactly what the server sees), or a throwaway
// in-memory store behind --in-memory for exercising the CLI itself.
func openStore() (*store.Facade, error) {
	if inMemory {
		mem := kv.NewMemStore()
		return store.New(mem, mem), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr(),
		Password: config.RedisPassword(),
		DB:       0,
	})
	rs := kv.NewRedisStore(client, 0)
	return store.New(rs, rs), nil
}

func parseLimit(raw int) int {
	if raw <= 0 {
		return 20
	}
	return raw
}
