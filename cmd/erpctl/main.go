// Command erpctl runs maintenance tasks against the ERP database using the
// same configuration and services as the API server.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
