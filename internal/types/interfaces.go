// internal/types/interfaces.go
package types

import (
	"context"
	"io"
)

type SessionStore interface {
	ResolveOrCreate(ctx context.Context, key SessionKey) (SessionID, error)
	Get(ctx context.Context, id SessionID) (*SessionIndex, error)
	List(ctx context.Context) ([]*SessionIndex, error)
	Delete(ctx context.Context, id SessionID) error
}

type ArtifactStore interface {
	Export(ctx context.Context, sessionID SessionID, runID RunID, dir string) (*ArtifactMeta, error)
	Open(ctx context.Context, sessionID SessionID, name string) (io.ReadCloser, *ArtifactMeta, error)
	List(ctx context.Context, sessionID SessionID) ([]*ArtifactMeta, error)
}
