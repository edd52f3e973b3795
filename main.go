package main

import "github.com/mselser95/bangr-engine/cmd"

func main() {
	cmd.Execute()
}
