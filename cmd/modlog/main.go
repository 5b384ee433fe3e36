package main

import "modlog-archive/internal/cli"

func main() {
	cli.Execute()
}
