package storage

import (
	"bytes"
	"errors"
	"testing"
)

func TestMemoryDB_PutGet(t *testing.T) {
	db := NewMemory()
	defer db.Close()

	key := []byte("key1")
	value := []byte("value1")

	if err := db.Put(key, value); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get() = %q, want %q", got, value)
	}
}

func TestMemoryDB_GetMissing(t *testing.T) {
	db := NewMemory()
	if _, err := db.Get([]byte("nope")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestMemoryDB_GetReturnsCopy(t *testing.T) {
	db := NewMemory()
	if err := db.Put([]byte("k"), []byte("abc")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	got[0] = 'X'

	again, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !bytes.Equal(again, []byte("abc")) {
		t.Error("mutating a returned value changed stored data")
	}
}

func TestMemoryDB_Delete(t *testing.T) {
	db := NewMemory()
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if has, _ := db.Has([]byte("k")); has {
		t.Error("key still present after Delete")
	}
	// Deleting a missing key is not an error.
	if err := db.Delete([]byte("nope")); err != nil {
		t.Errorf("Delete(missing) error: %v", err)
	}
}

func TestMemoryDB_Has(t *testing.T) {
	db := NewMemory()
	if has, err := db.Has([]byte("k")); err != nil || has {
		t.Errorf("Has(missing) = %v, %v", has, err)
	}
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if has, err := db.Has([]byte("k")); err != nil || !has {
		t.Errorf("Has(present) = %v, %v", has, err)
	}
}

func TestMemoryDB_ForEach(t *testing.T) {
	db := NewMemory()
	pairs := map[string]string{
		"s/a": "1",
		"s/b": "2",
		"x/c": "3",
	}
	for k, v := range pairs {
		if err := db.Put([]byte(k), []byte(v)); err != nil {
			t.Fatalf("Put(%s) error: %v", k, err)
		}
	}

	seen := make(map[string]string)
	err := db.ForEach([]byte("s/"), func(key, value []byte) error {
		seen[string(key)] = string(value)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach() error: %v", err)
	}
	if len(seen) != 2 || seen["s/a"] != "1" || seen["s/b"] != "2" {
		t.Errorf("ForEach visited %v", seen)
	}
}

func TestMemoryDB_ForEachPropagatesError(t *testing.T) {
	db := NewMemory()
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	want := errors.New("stop")
	err := db.ForEach(nil, func(key, value []byte) error { return want })
	if !errors.Is(err, want) {
		t.Errorf("ForEach error = %v, want %v", err, want)
	}
}

func TestPrefixDB_Isolation(t *testing.T) {
	inner := NewMemory()
	a := NewPrefixDB(inner, []byte("a/"))
	b := NewPrefixDB(inner, []byte("b/"))

	if err := a.Put([]byte("k"), []byte("from-a")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := b.Put([]byte("k"), []byte("from-b")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := a.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !bytes.Equal(got, []byte("from-a")) {
		t.Errorf("a.Get() = %q, want from-a", got)
	}

	if has, _ := inner.Has([]byte("a/k")); !has {
		t.Error("prefixed key not found in inner DB")
	}
}

func TestPrefixDB_ForEachStripsPrefix(t *testing.T) {
	inner := NewMemory()
	p := NewPrefixDB(inner, []byte("ns/"))
	if err := p.Put([]byte("s/x"), []byte("1")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := inner.Put([]byte("other/s/y"), []byte("2")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	var keys []string
	err := p.ForEach([]byte("s/"), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach() error: %v", err)
	}
	if len(keys) != 1 || keys[0] != "s/x" {
		t.Errorf("ForEach keys = %v, want [s/x]", keys)
	}
}

func TestBadgerDB_Roundtrip(t *testing.T) {
	db, err := NewBadger(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	defer db.Close()

	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Errorf("Get() = %q, want v", got)
	}
	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}
