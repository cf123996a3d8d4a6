package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashKeyFromStdin(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetIn(strings.NewReader("s3cret\n"))
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"hash-key", "--cost", "4"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}

	hash := strings.TrimSpace(out.String())
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Fatalf("printed hash does not match key: %v", err)
	}
}

func TestReadKeyRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"blank", "   \n"},
		{"too long", strings.Repeat("k", 73) + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := readKey(strings.NewReader(tt.input), io.Discard); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
