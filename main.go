package main

import "storefinder/internal/cli"

func main() {
	cli.Execute()
}
