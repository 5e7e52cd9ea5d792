package main

import "github.com/MeKo-Tech/detbox/cmd/detbox/cmd"

func main() {
	cmd.Execute()
}
