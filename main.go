package main

import "github.com/CyberZod/IJAC-PRO-ANTI/cmd"

func main() {
	cmd.Execute()
}
