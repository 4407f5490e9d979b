// Package store provides persistent storage for keygate using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with specialized
// interfaces:
//
//   - UserStore: account records with unique email lookup
//   - KeyStore: API key records with unique fingerprint lookup
//   - AuditStore: append-only audit trail of account and key actions
//
// SQLiteStore implements all interfaces in a single struct, allowing easy
// composition while maintaining clear interface boundaries. Consumers depend
// on the narrow interface they need, not on SQLiteStore.
//
// # Data Models
//
//   - User: signup identity with bcrypt password hash and role tag
//   - APIKey: service credential with encrypted-at-rest key material, a
//     keyed one-way fingerprint for O(1) verification lookup, lifecycle
//     status (active/revoked), and optional expiration
//   - AuditEntry: who did what to which resource, with JSON detail
//
// # Concurrency
//
// Every lookup used on the hot verification path (email, fingerprint, key
// ID) is served by a unique or secondary index. Lifecycle mutations are
// single UPDATE/DELETE statements, so concurrent revokes of the same key
// are both observed as clean transitions.
package store
