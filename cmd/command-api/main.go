// Command command-api serves the wallet HTTP edge: deposit, withdraw,
// transfer, balance and transaction history, per spec §6.
package main

import (
	"log"

	"github.com/fandangolas/wallet-ledger/internal/container"
)

func main() {
	c, err := container.GetInstance()
	if err != nil {
		log.Fatalf("failed to initialize command-api container: %v", err)
	}

	if err := c.Start(); err != nil {
		log.Fatalf("command-api exited with error: %v", err)
	}
}
