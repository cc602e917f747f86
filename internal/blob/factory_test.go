package blob

import (
	"context"
	"strings"
	"testing"
)

func TestOpenMemoryDriver(t *testing.T) {
	t.Setenv("AUTOINSPECT_ARCHIVE_DRIVER", "memory")
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("driver = %s", store.Driver())
	}
}

func TestOpenFilesystemDriver(t *testing.T) {
	t.Setenv("AUTOINSPECT_ARCHIVE_DRIVER", "fs")
	t.Setenv("AUTOINSPECT_ARCHIVE_FS_ROOT", t.TempDir())
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver = %s", store.Driver())
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Setenv("AUTOINSPECT_ARCHIVE_DRIVER", "ftp")
	if _, err := Open(context.Background()); err == nil || !strings.Contains(err.Error(), "ftp") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}

func TestMockS3HelperWiresThrough(t *testing.T) {
	store := NewMockS3ForTests()
	if store.Driver() != DriverS3 {
		t.Fatalf("driver = %s", store.Driver())
	}
}
