package main

import "github.com/sw33tLie/kpiscope/cmd"

func main() {
	cmd.Execute()
}
