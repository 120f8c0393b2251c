package main

import "github.com/docloom/docloom/cmd"

func main() {
	cmd.Execute()
}
