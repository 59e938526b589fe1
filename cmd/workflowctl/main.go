// Command workflowctl runs maintenance tasks against the invoice workflow ledger.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
