package main

import "github.com/goliatone/go-auth-client/cmd/authctl/cmd"

func main() {
	cmd.Execute()
}
