package main

import "github.com/mcoot/arcade-judge/internal/cli"

func main() {
	cli.Execute()
}
