package main

import "ospfatlas/internal/atlas/cli"

func main() {
	cli.Execute()
}
