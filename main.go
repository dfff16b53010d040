package main

import "github.com/skhoolar/skhoolar/cmd"

func main() {
	cmd.Execute()
}
