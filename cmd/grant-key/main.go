// Package main prints a fresh key pair for signing content access grants.
package main

import (
	"os"

	"github.com/louisbranch/paywall/internal/platform/config"
	"github.com/louisbranch/paywall/internal/tools/grantkey"
)

func main() {
	if err := grantkey.Run(os.Stdout, nil); err != nil {
		config.Exitf("generate grant key: %v", err)
	}
}
