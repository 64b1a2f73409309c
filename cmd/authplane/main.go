package main

import "github.com/authplane/authplane/cmd/authplane/cmd"

func main() {
	cmd.Execute()
}
