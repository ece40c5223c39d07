package main

import "github.com/KaramelBytes/csvoracle-cli/cmd"

func main() {
	cmd.Execute()
}
