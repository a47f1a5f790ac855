package main

import "github.com/mr1hm/go-alert-dispatch/internal/cli"

func main() {
	cli.Execute()
}
