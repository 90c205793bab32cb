package main

import "github.com/dayuer/chatgate/cmd"

func main() {
	cmd.Execute()
}
