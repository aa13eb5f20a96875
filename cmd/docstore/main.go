package main

import "github.com/habiliai/docstore/cmd/docstore/cmd"

func main() {
	cmd.Execute()
}
