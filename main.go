package main

import "github.com/ikolcov/cmsblog/cmd"

func main() {
	cmd.Execute()
}
