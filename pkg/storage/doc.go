// Package storage manages files inside an archive directory.
//
// MediaStore owns the shared media subdirectory. Every downloaded file is
// named <bookmark id>_<first 12 hex chars of its sha256><ext>, so the same
// content fetched twice for a bookmark lands on the same name and is kept
// once. An append-only index.jsonl maps (bookmark id, source URL) pairs to
// stored assets, which lets a later run skip the download entirely.
//
// WriteFileAtomic is the temp-file-then-rename primitive used for every
// file a reader may open concurrently (artifacts, sidecars, checkpoints).
package storage
