package main

import "github.com/whatsapp-automation/broadcaster/cmd/broadcaster/cmd"

func main() {
	cmd.Execute()
}
