package main

import "github.com/wentf9/flowlight/cmd"

func main() {
	cmd.Execute()
}
