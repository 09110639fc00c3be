package main

import "github.com/devicelab-dev/flowdriver/pkg/cli"

func main() {
	cli.Execute()
}
