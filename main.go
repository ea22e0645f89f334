package main

import "github.com/jghoshh/taskvibe/cli"

func main() {
	cli.Execute()
}
