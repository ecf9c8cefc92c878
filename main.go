// The main package for the harvester executable.
package main

import "github.com/geopop/harvester/cmd"

func main() {
	cmd.Execute()
}
