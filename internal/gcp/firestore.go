package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
)

// All pipeline documents live under an owner namespace.
const (
	usersCollection     = "users"
	filesCollection     = "files"
	sectionsCollection  = "sections"
	questionsCollection = "questions"
)

// Firestore caps a single WriteBatch at 500 writes; we stay under it to leave
// headroom for server-side transforms.
const maxWritesPerBatch = 450

// NewFirestoreClient creates and returns a new Firestore client for the given
// project ID. It centralizes client creation for all services.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// Files returns the files collection for one owner.
func Files(c *firestore.Client, ownerID string) *firestore.CollectionRef {
	return c.Collection(usersCollection).Doc(ownerID).Collection(filesCollection)
}

// Sections returns the sections collection for one owner.
func Sections(c *firestore.Client, ownerID string) *firestore.CollectionRef {
	return c.Collection(usersCollection).Doc(ownerID).Collection(sectionsCollection)
}

// Questions returns the questions collection for one owner.
func Questions(c *firestore.Client, ownerID string) *firestore.CollectionRef {
	return c.Collection(usersCollection).Doc(ownerID).Collection(questionsCollection)
}

// BatchWrite is one pending write in a sharded commit. A nil Data deletes the
// referenced document instead of setting it.
type BatchWrite struct {
	Ref  *firestore.DocumentRef
	Data interface{}
}

// PartialWriteError reports a sharded commit that failed after at least one
// shard was already committed. Downstream consumers must tolerate the
// partially created document set.
type PartialWriteError struct {
	Committed int
	Total     int
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial batch write: %d of %d documents committed: %v", e.Committed, e.Total, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// CommitInShards commits the writes in batches below the per-batch document
// limit. There is no cross-shard atomicity: a failure after the first shard
// surfaces as *PartialWriteError, a failure on the first shard as a plain
// error (nothing was written).
func CommitInShards(ctx context.Context, c *firestore.Client, writes []BatchWrite) error {
	committed := 0
	for start := 0; start < len(writes); start += maxWritesPerBatch {
		end := start + maxWritesPerBatch
		if end > len(writes) {
			end = len(writes)
		}

		batch := c.Batch()
		for _, w := range writes[start:end] {
			if w.Data == nil {
				batch.Delete(w.Ref)
			} else {
				batch.Set(w.Ref, w.Data)
			}
		}
		if _, err := batch.Commit(ctx); err != nil {
			if committed > 0 {
				return &PartialWriteError{Committed: committed, Total: len(writes), Err: err}
			}
			return fmt.Errorf("batch commit failed: %w", err)
		}
		committed += end - start
	}
	return nil
}
