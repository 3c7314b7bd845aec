// Idiomatic entrypoint for the Cobra CLI; all command wiring lives in
// cmd/simserver/cmd.
package main

import (
	"github.com/dsimlab/distsim/cmd/simserver/cmd"
)

func main() {
	cmd.Execute()
}
