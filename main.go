package main

import "github.com/hurou927/spmd-components/cmd"

func main() {
	cmd.Execute()
}
