// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/wayposthq/waypost-installer/cmd/waypostinstall"

func main() {
	cmd.Execute()
}
