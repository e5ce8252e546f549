package gocmd

// go.go provides utilities for executing Go commands.

import (
	"os"
	"os/exec"
	"path/filepath"
)

// Binary returns the go binary to use: $GOROOT/bin/go when GOROOT is set,
// otherwise go from PATH.
func Binary() string {
	if root := os.Getenv("GOROOT"); root != "" {
		bin := filepath.Join(root, "bin", "go")
		if _, err := os.Stat(bin); err == nil {
			return bin
		}
	}
	return "go"
}

// Command creates an exec.Cmd for running a Go command.
// The first argument is the Go subcommand (e.g., "test"), followed by its arguments.
func Command(args ...string) *exec.Cmd {
	return exec.Command(Binary(), args...)
}
