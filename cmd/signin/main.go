package main

import "github.com/nfrund/signin/cmd/signin/cmd"

func main() {
	cmd.Execute()
}
