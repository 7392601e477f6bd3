package storage

import (
	"context"

	"github.com/jradxl/idrived2backend/internal/parser"
)

// Adapter is the contract the backup pipeline consumes.
type Adapter interface {
	// Connect establishes the session eagerly. Operations establish it
	// lazily on first use, so calling Connect is optional.
	Connect(ctx context.Context) error

	// Put stores a local file under the remote prefix as remoteName.
	Put(ctx context.Context, localPath, remoteName string) error

	// Get downloads remoteName to localPath.
	Get(ctx context.Context, remoteName, localPath string) error

	// List returns the entries currently under the remote prefix.
	List(ctx context.Context) ([]parser.Entry, error)

	// Delete removes one remote file; DeleteMany removes a batch in a
	// single invocation. Deletions land in the service trash.
	Delete(ctx context.Context, remoteName string) error
	DeleteMany(ctx context.Context, remoteNames []string) error

	// PurgeTrash permanently removes a deleted path from the service
	// trash so it stops counting against quota.
	PurgeTrash(ctx context.Context, remoteName string) error

	// Query returns the remote size of remoteName, or SizeUnknown when it
	// is absent. QueryMany answers for a batch with one listing call.
	Query(ctx context.Context, remoteName string) (int64, error)
	QueryMany(ctx context.Context, remoteNames []string) (map[string]int64, error)

	// Close removes local temporary state. Best effort.
	Close() error
}
