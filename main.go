package main

import (
	"github.com/sidkik/remote-mirror/cmd"
	"github.com/sidkik/remote-mirror/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
