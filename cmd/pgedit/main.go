package main

import "github.com/koustreak/pgedit/internal/cli"

func main() {
	cli.Execute()
}
