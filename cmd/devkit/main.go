package main

import "github.com/kcaldas/devkit/cmd/cli"

func main() {
	cli.Execute()
}
