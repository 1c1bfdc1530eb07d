package storage

import (
	"errors"
	"testing"
)

func TestClean(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "/", false},
		{"/", "/", false},
		{"home", "/home", false},
		{"/home/docs/", "/home/docs", false},
		{"//home//a.txt", "/home/a.txt", false},
		{"/home/./a.txt", "/home/a.txt", false},
		{"/home/../etc", "", true},
		{"..", "", true},
		{"a/\x00b", "", true},
		{"/home/..hidden", "/home/..hidden", false},
	}
	for _, tt := range tests {
		got, err := Clean(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidPath) {
				t.Errorf("Clean(%q) error = %v, want ErrInvalidPath", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Clean(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		dir, name, want string
	}{
		{"/", "a", "/a"},
		{"", "a", "/a"},
		{"/home", "a.txt", "/home/a.txt"},
		{"/home/", "a.txt", "/home/a.txt"},
	}
	for _, tt := range tests {
		if got := Join(tt.dir, tt.name); got != tt.want {
			t.Errorf("Join(%q, %q) = %q, want %q", tt.dir, tt.name, got, tt.want)
		}
	}
}
