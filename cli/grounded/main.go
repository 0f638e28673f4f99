package main

import (
	"os"

	groundedcmder "github.com/groundedhq/grounded/cmd/grounded"
)

func main() {
	cmd := groundedcmder.NewGroundedCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
