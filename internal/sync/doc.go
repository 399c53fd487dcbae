// Package sync reconciles the local store with the remote document store.
//
// The engine performs the "smart initial sync" used on session start:
//
//  1. Load local task and tab maps (always available, synchronous).
//  2. Without an authenticated user, local data is the result.
//  3. A valid read cache plus a recent sync stamp for the same user skips
//     the remote fetch entirely, so rapid restarts cost no reads.
//  4. Otherwise remote tasks and tabs are fetched concurrently.
//  5. Workspaces that exist only locally are uploaded in one atomic batch.
//  6. Local and remote maps are merged with remote precedence and the
//     merged result is written back to the local store.
//
// The read cache is owned by the engine, invalidated explicitly on any
// local mutation and implicitly after a 5 minute TTL. Sync stamps are
// session-scoped, held in memory per user.
//
// Remote failures during sync are non-fatal: the engine returns local data
// unchanged together with the error so the boundary can surface a
// notification.
package sync
