package main

import "github.com/subgrab/subgrab/cmd/subgrab/cmd"

func main() {
	cmd.Execute()
}
