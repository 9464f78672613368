package main

import "github.com/devicelab-dev/smoke-runner/pkg/cli"

func main() {
	cli.Execute()
}
