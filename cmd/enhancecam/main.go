package main

import "github.com/enhancecam/enhancecam/cmd/enhancecam/commands"

func main() {
	commands.Execute()
}
