// Command floodctl evaluates readings and inspects the flood schema offline,
// without the acquisition loop or the HTTP server.
//
// Usage:
//
//	floodctl validate --schema ./flood.yaml --rules ./rules.txt
//	floodctl classify reading.json
//	floodctl explain --zone Zone_Tanghin --property HighRisk
//	floodctl graph --reading reading.json --max-individuals 50
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
