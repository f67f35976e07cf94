// internal/state/artifact_test.go
package state

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/user/chatverse/internal/types"
)

func writeWorkspace(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "snake_game")
	if err := os.MkdirAll(filepath.Join(dir, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"prd.md":                "# PRD",
		"docs/system_design.md": "# Design",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestArtifactExport(t *testing.T) {
	root := t.TempDir()
	store := NewArtifactStore(root)
	ctx := context.Background()
	sid := types.SessionID("s1")

	meta, err := store.Export(ctx, sid, "r1", writeWorkspace(t))
	if err != nil {
		t.Fatal(err)
	}
	if meta.Name != "s1_snake_game.zip" {
		t.Errorf("unexpected artifact name %q", meta.Name)
	}
	if meta.Path != filepath.Join(root, "artifacts", "s1_snake_game.zip") {
		t.Errorf("unexpected artifact path %q", meta.Path)
	}
	if meta.Size == 0 {
		t.Error("expected non-empty zip")
	}

	zr, err := zip.OpenReader(meta.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "docs/system_design.md" || names[1] != "prd.md" {
		t.Errorf("unexpected zip entries %v", names)
	}

	rc, _ := zr.File[0].Open()
	body, _ := io.ReadAll(rc)
	rc.Close()
	if len(body) == 0 {
		t.Error("expected zip entry content")
	}
}

func TestArtifactOpenIsSessionScoped(t *testing.T) {
	store := NewArtifactStore(t.TempDir())
	ctx := context.Background()

	meta, err := store.Export(ctx, "s1", "", writeWorkspace(t))
	if err != nil {
		t.Fatal(err)
	}

	rc, got, err := store.Open(ctx, "s1", meta.Name)
	if err != nil {
		t.Fatal(err)
	}
	rc.Close()
	if got.Size != meta.Size {
		t.Errorf("expected size %d, got %d", meta.Size, got.Size)
	}

	for _, name := range []string{meta.Name, "../" + meta.Name, "s2_missing.zip"} {
		if _, _, err := store.Open(ctx, "s2", name); !errors.Is(err, ErrNotFound) {
			t.Errorf("Open(s2, %q): expected ErrNotFound, got %v", name, err)
		}
	}

	list, err := store.List(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 artifact, got %d", len(list))
	}
	list, _ = store.List(ctx, "s2")
	if len(list) != 0 {
		t.Errorf("expected no artifacts for another session, got %d", len(list))
	}
}

func TestArtifactExportMissingDir(t *testing.T) {
	store := NewArtifactStore(t.TempDir())
	if _, err := store.Export(context.Background(), "s1", "", filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing workspace")
	}
}
