package main

import "github.com/nfrund/serialbus/cmd/serialbus/cmd"

func main() {
	cmd.Execute()
}
