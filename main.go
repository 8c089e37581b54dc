// ./main.go
package main

import (
	"github.com/xkilldash9x/auspex/cmd"
)

// main is the entry point for the Auspex CLI.
func main() {
	cmd.Execute()
}
