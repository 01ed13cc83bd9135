package main

import "github.com/bouthilx/track/internal/cli"

func main() {
	cli.Execute()
}
