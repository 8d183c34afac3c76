// Package main is the entry point for the textai binary: the privileged
// host, the content editor, or both paired in one process.
package main

import (
	"github.com/nkkko/textai/apps/textai/cmd"
)

func main() {
	cmd.Execute()
}
