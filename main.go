package main

import "github.com/agentic-research/modgate/cmd"

func main() {
	cmd.Execute()
}
