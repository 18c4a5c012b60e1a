package main

import (
	"github.com/pulanski/r2db2/cmd"
)

func main() {
	cmd.Execute()
}
