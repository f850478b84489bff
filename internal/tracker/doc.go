// Package tracker implements single-flight navigation completion tracking.
//
// A Tracker is either Idle or Loading(target). LoadURL always moves to
// Loading with the new target, silently abandoning any previous load.
// Only a PageFinished event whose URL equals the target (case-insensitive)
// fires the load callback and returns the tracker to Idle. Retarget moves
// the live target, completing at once when that URL has already finished.
//
// A load that never reaches its target keeps the tracker Loading until the
// next LoadURL. Deadlines belong to the caller.
package tracker
