// Package models defines domain entities and persistence interfaces for the chord matching service.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing listening-provider data
//   - [Track] : A top track with its artists
//   - [Artist] : A top artist with genres, used for the genre dimensions
//   - [AudioFeatures] : Per-track audio descriptors, used for the audio dimensions
//   - [Candidate] : A scored-ready partner proposed by a candidate source
//
// 2. Persistent Entities: Database-backed models
//   - [User] : Users with a rounded [Location] and a [TasteProfile]
//   - [Match] : A daily pairing of two users with its reveal state
//   - [Message] : Chat messages inside a match
//   - [Report] : Side-channel abuse reports
//   - [Block] : Permanent (blocker, blocked) exclusions
//
// [User] and [Match] implement the [Model] interface providing ID, timestamps and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
