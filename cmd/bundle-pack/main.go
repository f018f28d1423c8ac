package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/enrollhq/leadscore/internal/bundle"
)

// bundle-pack writes a manifest over an exported model directory so the
// registry will accept it, then verifies the result end to end.
func main() {
	dir := flag.String("dir", "", "bundle directory to pack (required)")
	version := flag.String("version", "", "bundle version, e.g. 1.4.0 (required)")
	flag.Parse()

	if *dir == "" || *version == "" {
		log.Fatalf("both -dir and -version are required")
	}

	if err := bundle.WriteManifest(*dir, *version, time.Now().UTC()); err != nil {
		log.Fatalf("write manifest: %v", err)
	}

	b, err := bundle.Load(*dir)
	if err != nil {
		log.Fatalf("packed bundle failed verification: %v", err)
	}
	defer b.Release()

	fmt.Printf("packed bundle %s\n", b.Version)
	fmt.Printf("checksum: %s\n", b.Checksum)
	fmt.Printf("features: %d, estimator: %s\n", len(b.Schema.FeatureNames), b.Schema.Estimator.Type)
}
