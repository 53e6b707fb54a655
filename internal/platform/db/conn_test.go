package db

import (
	"context"
	"testing"
)

func TestConnFromContext_Empty(t *testing.T) {
	conn := ConnFromContext(context.Background())
	if conn != nil {
		t.Error("expected nil conn from empty context")
	}
}

func TestConnFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBConnKey, "not-a-conn")
	if conn := ConnFromContext(ctx); conn != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestTxFromContext_Nil(t *testing.T) {
	tx := TxFromContext(context.Background())
	if tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestWithTx_NoConnection(t *testing.T) {
	_, _, err := WithTx(context.Background())
	if err == nil {
		t.Fatal("expected error when no connection in context")
	}
	if err.Error() != "no database connection in context" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
}

func TestInTx_NoConnection(t *testing.T) {
	called := false
	err := InTx(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if err == nil {
		t.Error("expected error when no connection in context")
	}
	if called {
		t.Error("fn must not run without a transaction")
	}
}

func TestWithConn_InvalidSchema(t *testing.T) {
	for _, schema := range []string{"", "tenant-with-dash", "a.b", "drop;table", "1abc"} {
		_, _, err := WithConn(context.Background(), nil, schema)
		if err == nil {
			t.Errorf("expected error for invalid schema %q", schema)
		}
	}
}

func TestValidSchema(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"public", true},
		{"care_bundles", true},
		{"Tenant1", true},
		{"_private", true},
		{"a-b", false},
		{"a b", false},
		{"", false},
		{"$pecial", false},
	}
	for _, tt := range tests {
		if got := ValidSchema(tt.input); got != tt.valid {
			t.Errorf("ValidSchema(%q) = %v, want %v", tt.input, got, tt.valid)
		}
	}
}
