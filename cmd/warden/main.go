package main

import "github.com/halcyon-sh/warden/internal/cli"

func main() {
	cli.Execute()
}
