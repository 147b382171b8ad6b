package main

import "github.com/vietddude/weatherload/internal/cli"

func main() {
	cli.Execute()
}
