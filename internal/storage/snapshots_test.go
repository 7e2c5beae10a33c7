package storage

import (
	"io"
	"strings"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	store, err := NewSnapshotStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	name, err := store.Save("export-1.json", strings.NewReader(`{"a":1}`))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if name != "export-1.json" {
		t.Errorf("name = %q", name)
	}

	rc, err := store.Open(name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != `{"a":1}` {
		t.Errorf("body = %q", body)
	}

	infos, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "export-1.json" {
		t.Errorf("infos = %+v", infos)
	}
}

func TestSnapshotNameIsSanitized(t *testing.T) {
	store, err := NewSnapshotStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	name, err := store.Save("../../etc/passwd", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if name != "passwd" {
		t.Errorf("name = %q, want base name only", name)
	}
}

func TestSnapshotEmptyNameRejected(t *testing.T) {
	store, err := NewSnapshotStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save("", strings.NewReader("x")); err == nil {
		t.Error("empty name accepted")
	}
}
