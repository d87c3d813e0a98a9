package main

import "github.com/marquee/apiserver/cmd"

func main() {
	cmd.Execute()
}
