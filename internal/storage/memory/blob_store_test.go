package memory

import (
	"bytes"
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte(`{"boards":[]}`)
	uri, err := store.PutObject(context.Background(), "indexes/run/abc.json", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://indexes/run/abc.json" {
		t.Fatalf("unexpected uri %s", uri)
	}

	obj, ok := store.Get("indexes/run/abc.json")
	if !ok {
		t.Fatal("expected stored object")
	}
	if obj.ContentType != "application/json" || string(obj.Data) != `{"boards":[]}` {
		t.Fatalf("unexpected object %+v", obj)
	}
	obj.Data[0] = 'X'
	again, _ := store.Get("indexes/run/abc.json")
	if again.Data[0] != '{' {
		t.Fatal("expected Get to return a copy")
	}
	if paths := store.Paths(); len(paths) != 1 {
		t.Fatalf("Paths() = %v", paths)
	}
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := NewBlobStore().PutObject(context.Background(), " ", "", bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error for empty path")
	}
}
