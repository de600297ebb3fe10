package main

import "reprosign/internal/cli"

func main() {
	cli.Execute()
}
