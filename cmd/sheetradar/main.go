package main

import "github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/cli"

func main() {
	cli.Execute()
}
