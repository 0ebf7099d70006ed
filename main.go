package main

import "deepstitch/cmd"

func main() {
	cmd.Execute()
}
