// Package main provides a one-shot utility for actor token key generation.
//
// It emits the asymmetric keypair used to verify staff tokens on the booking API.
package main

import (
	"os"

	"github.com/luminastudio/booking/internal/platform/config"
	"github.com/luminastudio/booking/internal/tools/actortoken"
)

func main() {
	if err := actortoken.Run(os.Stdout, nil); err != nil {
		config.Exitf("generate actor token key: %v", err)
	}
}
