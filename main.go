package main

import "gridprobe/cmd"

func main() {
	cmd.Execute()
}
