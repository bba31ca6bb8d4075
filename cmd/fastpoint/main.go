package main

import "github.com/fastpoint/fastpoint/internal/cli"

func main() {
	cli.Execute()
}
