package main

import "github.com/freightops/settlements/cmd"

func main() {
	cmd.Execute()
}
