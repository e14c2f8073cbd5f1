package main

import "github.com/jmcleod/glassbank/cmd/glassbank/cmd"

func main() {
	cmd.Execute()
}
