package fsutil

import (
	"errors"
	"io/fs"
	"testing"
)

func TestOSFileSystem_ReadFile(t *testing.T) {
	data, err := OSFileSystem{}.ReadFile("filesystem.go")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty file content")
	}
}

func TestOSFileSystem_StatMissing(t *testing.T) {
	_, err := OSFileSystem{}.Stat("nonexistent_file_xyz.json")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/etc/crankbox/../crankbox/config.json", []byte(`{"baud_rate": 9600}`))

	data, err := mfs.ReadFile("/etc/crankbox/config.json")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != `{"baud_rate": 9600}` {
		t.Errorf("unexpected contents %q", data)
	}

	info, err := mfs.Stat("/etc/crankbox/config.json")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != int64(len(data)) || info.Name() != "config.json" || info.IsDir() {
		t.Errorf("unexpected file info %+v", info)
	}
}

func TestMemoryFileSystem_ReadReturnsCopy(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("a.txt", []byte("abc"))

	data, _ := mfs.ReadFile("a.txt")
	data[0] = 'z'

	again, _ := mfs.ReadFile("a.txt")
	if string(again) != "abc" {
		t.Errorf("stored data was mutated: %q", again)
	}
}

func TestMemoryFileSystem_Missing(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if _, err := mfs.ReadFile("nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile: expected ErrNotExist, got %v", err)
	}
	if _, err := mfs.Stat("nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat: expected ErrNotExist, got %v", err)
	}
}
