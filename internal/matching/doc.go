// Package matching owns a committed match after the daily run: the reveal state
// machine, blocking and reporting, chat, and the caller-specific views of a match.
//
// [Transition] is pure and decides whether an action is legal. [Lifecycle] loads a
// match, applies the transition and persists it with a versioned compare-and-swap,
// so two concurrent actions on the same match cannot both succeed.
package matching
