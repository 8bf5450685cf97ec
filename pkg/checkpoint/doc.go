// Package checkpoint saves and restores the position of a sync run.
//
// After every consumed page the sync engine records the pagination cursor of
// the next page. A run that stops on a fatal error leaves the checkpoint in
// place, and the next run started with --resume continues from that cursor
// instead of walking the bookmark feed from the newest item again. A run that
// reaches the end of the feed deletes it.
//
// The checkpoint lives in the archive root as .sync-checkpoint.json and is
// written atomically, so a crash never leaves a half-written file behind.
package checkpoint
