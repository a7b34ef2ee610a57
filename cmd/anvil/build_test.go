package main

import (
	"path/filepath"
	"testing"
)

func TestFormatPathForOutput(t *testing.T) {
	root := filepath.FromSlash("/work/demo")
	cases := []struct {
		root string
		path string
		want string
	}{
		{root, filepath.FromSlash("/work/demo/anvil.toml"), "anvil.toml"},
		{root, filepath.FromSlash("/work/demo/sub/anvil.toml"), "sub/anvil.toml"},
		{root, filepath.FromSlash("/elsewhere/anvil.toml"), filepath.FromSlash("/elsewhere/anvil.toml")},
		{"", filepath.FromSlash("/work/demo/anvil.toml"), filepath.FromSlash("/work/demo/anvil.toml")},
		{root, "", ""},
	}
	for _, tc := range cases {
		got := formatPathForOutput(tc.root, tc.path)
		if got != tc.want {
			t.Fatalf("formatPathForOutput(%q, %q) = %q, want %q", tc.root, tc.path, got, tc.want)
		}
	}
}
