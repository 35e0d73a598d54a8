// Package main is the entry point for the hivebridge application.
package main

import (
	"github.com/stakwork/hivebridge/cmd"
)

func main() {
	cmd.Execute()
}
