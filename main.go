// The main package for the ngacrawl executable.
package main

import (
	"github.com/JakeFAU/nga-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
