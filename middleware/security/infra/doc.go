// Package infra holds the concrete implementations of the domain contracts.
//
//   - MemoryStore: the in-process maps (counters, bursts, suspicion, blocked set)
//   - RedisStore: the same state shared across instances and restarts
//   - MemoryStatsStore / RedisStatsStore: decision statistics
//   - TokenBuckets: per-key golang.org/x/time/rate limiters
//   - ChanPool: channel semaphore for the concurrency cap
//   - SystemClock / NewTicker: wall-clock time
package infra
