package main

import "github.com/ctz/aws-lc-build/cmd"

func main() {
	cmd.Execute()
}
