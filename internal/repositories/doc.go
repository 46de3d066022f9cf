// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository wraps a *sql.DB and takes a context on every call.
// Users support soft deletes via deleted_at timestamps and are excluded from queries once deleted.
//
// Key Implementations:
//   - [UserRepository] : user records, rounded locations and wholesale taste profile replacement
//   - [TokenRepository] : provider OAuth tokens per user
//   - [MatchRepository] : insert-if-absent match creation and versioned compare-and-set updates
//   - [BlockRepository] : block relation lookups
//   - [ReportRepository] : side-channel reports
//   - [MessageRepository] : append and ordered read of match chat
//   - [CandidateRepository] : the candidate source for the daily matcher
//
// # No double booking
//
// [MatchRepository.CreateIfAbsent] writes the match and one match_participants row per user in one transaction.
// The participants primary key (user_id, match_date) rejects a second match for either user on the same day,
// which surfaces as [shared.ErrAlreadyMatched]. This holds however many matchers run concurrently.
//
// Sequence numbers provide stable, human-readable ordering (e.g., user #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
