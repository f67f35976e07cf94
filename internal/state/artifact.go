// internal/state/artifact.go
package state

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/user/chatverse/internal/types"
)

// ArtifactStore writes zipped workspaces to <root>/artifacts/. File names
// are <session_id>_<workspace basename>.zip, which keeps each session's
// downloads separate.
type ArtifactStore struct {
	root string
}

// NewArtifactStore creates a new file-backed ArtifactStore rooted at the given directory.
func NewArtifactStore(root string) *ArtifactStore {
	return &ArtifactStore{root: root}
}

func (a *ArtifactStore) artifactsDir() string {
	return filepath.Join(a.root, "artifacts")
}

// ArtifactName is the file name Export uses for dir in a session.
func ArtifactName(sessionID types.SessionID, dir string) string {
	return string(sessionID) + "_" + filepath.Base(filepath.Clean(dir)) + ".zip"
}

// Export zips every regular file under dir.
func (a *ArtifactStore) Export(_ context.Context, sessionID types.SessionID, runID types.RunID, dir string) (*types.ArtifactMeta, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat workspace: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace %s is not a directory", dir)
	}
	if err := os.MkdirAll(a.artifactsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts dir: %w", err)
	}

	name := ArtifactName(sessionID, dir)
	target := filepath.Join(a.artifactsDir(), name)
	tmp := target + ".tmp"
	if err := writeZip(tmp, dir); err != nil {
		os.Remove(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("rename temp artifact: %w", err)
	}

	st, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}
	return &types.ArtifactMeta{
		ID:        types.NewArtifactID(),
		SessionID: sessionID,
		RunID:     runID,
		Name:      name,
		Path:      target,
		Size:      st.Size(),
		CreatedAt: st.ModTime(),
		MimeType:  "application/zip",
	}, nil
}

func writeZip(target, dir string) error {
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("zip workspace: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	return f.Sync()
}

// Open returns a session's artifact by file name. Names belonging to other
// sessions are reported as not found.
func (a *ArtifactStore) Open(_ context.Context, sessionID types.SessionID, name string) (io.ReadCloser, *types.ArtifactMeta, error) {
	if name != filepath.Base(name) || !strings.HasPrefix(name, string(sessionID)+"_") || !strings.HasSuffix(name, ".zip") {
		return nil, nil, fmt.Errorf("artifact %s: %w", name, ErrNotFound)
	}
	path := filepath.Join(a.artifactsDir(), name)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("artifact %s: %w", name, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("open artifact: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat artifact: %w", err)
	}
	return f, &types.ArtifactMeta{
		SessionID: sessionID,
		Name:      name,
		Path:      path,
		Size:      st.Size(),
		CreatedAt: st.ModTime(),
		MimeType:  "application/zip",
	}, nil
}

// List returns a session's artifacts, newest first.
func (a *ArtifactStore) List(_ context.Context, sessionID types.SessionID) ([]*types.ArtifactMeta, error) {
	pattern := filepath.Join(a.artifactsDir(), string(sessionID)+"_*.zip")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob artifacts: %w", err)
	}
	out := make([]*types.ArtifactMeta, 0, len(matches))
	for _, path := range matches {
		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		out = append(out, &types.ArtifactMeta{
			SessionID: sessionID,
			Name:      filepath.Base(path),
			Path:      path,
			Size:      st.Size(),
			CreatedAt: st.ModTime(),
			MimeType:  "application/zip",
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
