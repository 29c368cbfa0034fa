package files

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestTrashRoundTrip(t *testing.T) {
	layout := Layout{DataRoot: t.TempDir()}
	trash := NewTrash(layout)

	original := filepath.Join(layout.UserRoot(1), "docs", "note.txt")
	content := []byte("hello trash")
	if err := os.MkdirAll(filepath.Dir(original), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(original, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	id, err := trash.Put(1, "/docs/note.txt", original, int64(len(content)))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !trashIDPattern.MatchString(id) {
		t.Fatalf("unexpected trash id %q", id)
	}
	if exists(original) {
		t.Fatal("original should be gone after trashing")
	}

	// 부모 폴더도 사라진 상태에서 복원
	if err := os.RemoveAll(filepath.Dir(original)); err != nil {
		t.Fatalf("remove parent: %v", err)
	}

	restored, err := trash.Restore(1, id)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored != "/docs/note.txt" {
		t.Fatalf("unexpected restored path %s", restored)
	}
	got, err := os.ReadFile(original)
	if err != nil {
		t.Fatalf("read restored: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("restored content mismatch: %q", got)
	}
	if exists(filepath.Join(layout.TrashRoot(1), id+trashInfoSuffix)) {
		t.Fatal("sidecar should be removed after restore")
	}
}

func TestTrashRestoreConflict(t *testing.T) {
	layout := Layout{DataRoot: t.TempDir()}
	trash := NewTrash(layout)

	abs := filepath.Join(layout.UserRoot(1), "a.txt")
	mustWrite(t, abs, 3)
	id, err := trash.Put(1, "/a.txt", abs, 3)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	mustWrite(t, abs, 5)

	_, err = trash.Restore(1, id)
	fe, ok := err.(*Error)
	if !ok || fe.Kind != KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestTrashRejectsInvalidID(t *testing.T) {
	trash := NewTrash(Layout{DataRoot: t.TempDir()})
	for _, id := range []string{"", "../../etc", "ABCDEF", "0123456789abcdef0123456789abcdeg"} {
		if _, err := trash.Restore(1, id); err == nil {
			t.Fatalf("expected error for id %q", id)
		}
	}
}

func TestTrashListSkipsCorruptSidecars(t *testing.T) {
	layout := Layout{DataRoot: t.TempDir()}
	trash := NewTrash(layout)

	abs := filepath.Join(layout.UserRoot(1), "ok.txt")
	mustWrite(t, abs, 4)
	if _, err := trash.Put(1, "/ok.txt", abs, 4); err != nil {
		t.Fatalf("put: %v", err)
	}

	corruptID := newTrashID()
	mustWrite(t, filepath.Join(layout.TrashRoot(1), corruptID), 9)
	if err := os.WriteFile(filepath.Join(layout.TrashRoot(1), corruptID+trashInfoSuffix), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt sidecar: %v", err)
	}

	entries, total, err := trash.List(1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || total != 4 || entries[0].OriginalPath != "/ok.txt" {
		t.Fatalf("unexpected listing: %+v total=%d", entries, total)
	}

	freed, empty, err := trash.Empty(context.Background(), 1)
	if err != nil {
		t.Fatalf("empty: %v", err)
	}
	if !empty {
		t.Fatal("expected trash to be empty")
	}
	if freed != 13 {
		t.Fatalf("expected 13 bytes freed (sidecar size plus measured corrupt item), got %d", freed)
	}
}

func TestTrashTeardownRemovesDirectory(t *testing.T) {
	layout := Layout{DataRoot: t.TempDir()}
	trash := NewTrash(layout)

	abs := filepath.Join(layout.UserRoot(1), "x.bin")
	mustWrite(t, abs, 8)
	if _, err := trash.Put(1, "/x.bin", abs, 8); err != nil {
		t.Fatalf("put: %v", err)
	}

	freed, err := trash.teardown(context.Background(), 1)
	if err != nil {
		t.Fatalf("teardown: %v", err)
	}
	if freed != 8 {
		t.Fatalf("expected 8 bytes freed, got %d", freed)
	}
	if trash.Exists(1) {
		t.Fatal("trash directory should be removed")
	}
}
