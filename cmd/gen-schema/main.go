// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Command gen-schema writes the JSON Schema for accounts config files.
//
// With --check it exits non-zero when the file on disk is stale instead of
// rewriting it.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/holomush/accounts/internal/config"
)

func main() {
	out := pflag.StringP("out", "o", filepath.Join("schemas", "accounts.schema.json"), "output path")
	check := pflag.Bool("check", false, "fail if the output file is out of date")
	pflag.Parse()

	if err := run(*out, *check); err != nil {
		fmt.Fprintf(os.Stderr, "gen-schema: %v\n", err)
		os.Exit(1)
	}
}

func run(outPath string, check bool) error {
	schema, err := config.GenerateSchema()
	if err != nil {
		return err
	}
	schema = append(schema, '\n')

	if check {
		current, err := os.ReadFile(outPath) //nolint:gosec // path comes from the developer
		if err != nil {
			return fmt.Errorf("read %s: %w", outPath, err)
		}
		if !bytes.Equal(current, schema) {
			return fmt.Errorf("%s is stale; run gen-schema", outPath)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(outPath, schema, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	fmt.Printf("Generated %s\n", outPath)
	return nil
}
