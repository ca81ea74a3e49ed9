//go:build tools

// Package tools pins dependencies that only test code imports, so go mod
// tidy keeps them in go.mod.
package tools

import (
	_ "pgregory.net/rapid"
)
