// tenderd runs the sealed-bid procurement engine behind a vsock JSON
// endpoint. The sealing capability is the in-process sealbox; its reveal
// envelopes loop back through signature verification before they reach the
// engine, the same path an external capability's callbacks take.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/cloudx-io/sealedtender/core"
	"github.com/cloudx-io/sealedtender/procure"
	"github.com/cloudx-io/sealedtender/sealapi"
	"github.com/cloudx-io/sealedtender/sealbox"
)

func getRequiredEnvInt(name string) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, fmt.Errorf("required environment variable %s is not set", name)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s is not an integer: %w", name, err)
	}
	return value, nil
}

func run() error {
	port, err := getRequiredEnvInt("TENDERD_VSOCK_PORT")
	if err != nil {
		return err
	}
	maxWorkers, err := getRequiredEnvInt("TENDERD_MAX_WORKERS")
	if err != nil {
		return err
	}
	authority := os.Getenv("TENDERD_AUTHORITY")
	if authority == "" {
		return fmt.Errorf("required environment variable TENDERD_AUTHORITY is not set")
	}

	// The box delivers signed envelopes into the verifying sink, which
	// forwards verified results to the engine. Wire callbacks go through
	// the same sink.
	sink := &sealapi.VerifyingSink{}
	box, err := sealbox.New(sink)
	if err != nil {
		return fmt.Errorf("failed to initialize sealbox: %w", err)
	}
	sink.Key = box.VerificationKey()

	svc := procure.NewService(procure.NewMemoryStore(), box, core.Principal(authority),
		procure.WithEvents(procure.NewPublisher("tenderd")),
	)
	sink.Next = svc

	log.Printf("INFO: tenderd starting (authority=%s)", authority)
	server := NewServer(uint32(port), maxWorkers, svc, sink)
	return server.Start()
}

func main() {
	if err := run(); err != nil {
		log.Printf("ERROR: tenderd failed: %v", err)
		os.Exit(1)
	}
}
