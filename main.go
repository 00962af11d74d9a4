package main

import "github.com/tjdeveng/keeptower/cmd"

func main() {
	cmd.Execute()
}
