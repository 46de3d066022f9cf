// Package tasks runs the long-lived jobs with real-time progress reporting.
//
// # Core Operations
//
//  1. [Matcher.Run] : Daily matching batch
//     - Loads every active user with a location and a taste profile
//     - Skips users who already have a match for the day
//     - Ranks candidates with the scoring engine and commits the best one
//     - Counts lost commit races and per-user failures without aborting
//
//  2. [ProfileSyncer.Sync] : Taste profile refresh
//     - Fetches top tracks and top artists from the listening-history provider
//     - Fetches audio features in chunks of at most 100 track IDs
//     - Rebuilds the profile and replaces the stored one
//
//  3. [Scheduler] : Daily trigger for [Matcher.Run] on a cron expression
//
// # Progress Reporting
//
// Operations accept an optional channel of [ProgressUpdate]. Updates use select with
// default so a slow or absent reader never blocks a run.
//
// # Concurrency
//
// The matcher processes users with a bounded worker pool and gives every user its own
// timeout. It keeps no in-memory record of who was matched: the store's conditional
// insert rejects a second match for either participant on the same day, so running
// the batch twice, or from two processes, never double-books.
package tasks
