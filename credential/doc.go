// Package credential provides the credential store used by the authenticated
// HTTP client.
//
// The credential is an *oauth2.Token. Its lifetime belongs to the application:
// the client only reads it before each request, replaces it after a successful
// refresh and clears it when authentication fails for good.
//
// # Backends
//
//   - MemoryStore: process memory, the default
//   - RedisStore: one JSON value under a configurable key (go-redis)
//   - SQLStore: a row in a "credentials" table (gorm, SQLite via OpenSQLite)
//
// Which backend to use is a deployment decision; the client treats them alike.
//
// # Quick Start
//
//	store := credential.NewMemoryStore()
//	_ = store.Set(ctx, credential.FromRefreshData(data, time.Now()))
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	shared := credential.NewRedisStore(rdb, credential.WithRedisKey("app:token"))
//
// TokenSource exposes any Store as an oauth2.TokenSource.
package credential
