package main

import "github.com/shalisap/thesis-tor/internal/cli"

func main() {
	cli.Execute()
}
