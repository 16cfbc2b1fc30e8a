// SPDX-License-Identifier: MPL-2.0

// Command modload imports, compiles and reloads shell modules.
package main

import cmd "github.com/invowk/modload/cmd/modload"

func main() {
	cmd.Execute()
}
