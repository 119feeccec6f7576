package main

import (
	"github.com/natanjunges/dist-tools/cmd"
)

func main() {
	cmd.Execute()
}
