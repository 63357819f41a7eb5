package main

import "github.com/hootmeow/openvas-strix/internal/cli"

func main() {
	cli.Execute()
}
