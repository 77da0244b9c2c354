package main

import (
	"flag"

	"github.com/cardano-community/rosetta-cardano-check/cmd"
)

func main() {
	// glog writes to files unless told otherwise; a cli tool wants stderr.
	_ = flag.Set("logtostderr", "true")
	flag.Parse()

	cmd.Execute()
}
