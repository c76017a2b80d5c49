package main

import "fundamentals-merge/internal/cli"

func main() {
	cli.Execute()
}
