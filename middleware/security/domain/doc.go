// Package domain defines the types and contracts of the anti-abuse layer:
// rate-limit policies, window counters, suspicion records, decisions and the
// storage interfaces that back them.
//
// This package does not depend on net/http nor on concrete stores, so the
// rules can be unit-tested in isolation and the storage swapped between the
// in-process maps and a shared backend.
package domain
