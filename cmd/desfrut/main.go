// Command desfrut is the entry point for the Desfrut shop assistant. It
// ingests the staff manual and product catalog into a vector store and
// serves a question form that answers from both.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/desfrut-go/cmd/desfrut/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
