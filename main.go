package main

import "github.com/jeet-u/jeet-u-updater/cmd"

func main() {
	cmd.Execute()
}
