// Command eventq benchmarks and cross-checks the event queue strategies.
package main

import "github.com/sarchlab/eventq/eventq/cmd"

func main() {
	cmd.Execute()
}
