// Command uvmasm is the CLI front end for the UVM assembler's parser and
// type-checker pipeline.
package main

import "github.com/keurnel/uvmasm/cmd/uvmasm/cmd"

func main() {
	cmd.Execute()
}
