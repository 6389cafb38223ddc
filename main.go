package main

import "github.com/Tiliavir/punch-clock/cmd"

func main() {
	cmd.Execute()
}
