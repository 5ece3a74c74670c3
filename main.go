package main

import "github.com/camden-git/dopplerindex/cmd"

func main() {
	cmd.Execute()
}
