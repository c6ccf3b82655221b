// Command schema-generator writes the JSON schemas for pulse.yml, its
// logging extension and ingest batches.
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/pulse/config"
	"github.com/grovetools/pulse/logging"
	"github.com/grovetools/pulse/schema"
	"github.com/spf13/pflag"
)

func main() {
	outputDir := pflag.StringP("out", "o", "schema/definitions", "Directory to write schemas to")
	pflag.Parse()

	generators := map[string]func() ([]byte, error){
		"pulse.schema.json": config.GenerateSchema,
		"logging.schema.json": func() ([]byte, error) {
			return schema.Reflect(&logging.Config{}, "yaml",
				"Pulse Logging Configuration", "Schema for the 'logging' extension in pulse.yml.")
		},
		"batch.schema.json": schema.BatchSchema,
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}

	for name, generate := range generators {
		data, err := generate()
		if err != nil {
			log.Fatalf("Error generating %s: %v", name, err)
		}
		outputPath := filepath.Join(*outputDir, name)
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			log.Fatalf("Error writing schema file: %v", err)
		}
		log.Printf("Generated %s", outputPath)
	}
}
