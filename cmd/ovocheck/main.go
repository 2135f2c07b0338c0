// Command ovocheck type checks Python code that uses oslo.versionedobjects.
package main

import "github.com/ovo-tools/ovocheck/internal/cmd"

func main() {
	cmd.Execute()
}
