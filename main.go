package main

import "github.com/akyaiy/GoSally-stream/cmd"

func main() {
	cmd.Execute()
}
