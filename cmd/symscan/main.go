package main

import "github.com/mvp-joe/symbol-scanner/internal/cli"

func main() {
	cli.Execute()
}
