package main

import "rosenkoenig/internal/cli"

func main() {
	cli.Execute()
}
