package db

import (
	"context"
	"testing"
)

func TestNewPool_InvalidSchema(t *testing.T) {
	_, err := NewPool(context.Background(), "postgres://localhost/x", "bad;schema", 2, 1)
	if err == nil {
		t.Fatal("expected error for invalid schema")
	}
}

func TestNewPool_BadURL(t *testing.T) {
	_, err := NewPool(context.Background(), "://nope", "", 2, 1)
	if err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestSearchPath(t *testing.T) {
	if got := searchPath("public"); got != "public" {
		t.Errorf("searchPath(public) = %q", got)
	}
	if got := searchPath("catalog"); got != "catalog, public" {
		t.Errorf("searchPath(catalog) = %q", got)
	}
}
