package main

import (
	"github.com/sidkik/lds/cmd"
	"github.com/sidkik/lds/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
