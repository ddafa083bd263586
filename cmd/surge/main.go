package main

import "github.com/surgehq/surge/cmd/surge/cmd"

func main() {
	cmd.Execute()
}
