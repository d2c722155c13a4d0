package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"go.uber.org/zap"

	"github.com/pilacorp/go-attestation-verifier/attestation"
	"github.com/pilacorp/go-attestation-verifier/attestation/config"
)

// Verification flow
//
// In this example:
// - Configuration is read from the environment (ATTESTATION_* variables),
//   falling back to testnet defaults.
// - The verifier dials the registry contract, enumerates the subject's
//   attestation records and prints the merged verdict as JSON.

func main() {
	subject := flag.String("subject", "", "subject address to verify")
	flag.Parse()

	if *subject == "" {
		log.Fatal("usage: verify -subject <address>")
	}

	ctx := context.Background()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	verifier, err := attestation.NewVerifierFromConfig(ctx, cfg, attestation.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to initialize verifier: %v", err)
	}

	result := verifier.Verify(ctx, *subject)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to serialize result: %v", err)
	}
	fmt.Println(string(out))
}
