package main

import "shorts-studio/cmd"

func main() {
	cmd.Execute()
}
