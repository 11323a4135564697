// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/pkg/errutil"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, SchemaID, schema["$id"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"http", "metrics", "log", "storage", "session", "hasher"} {
		assert.Contains(t, props, key)
	}

	storage := props["storage"].(map[string]any)
	storageProps := storage["properties"].(map[string]any)
	assert.Contains(t, storageProps, "database_url", "keys follow koanf tags")
	assert.NotContains(t, storage, "required")
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{name: "empty document", doc: ""},
		{name: "partial document", doc: "http:\n  addr: 0.0.0.0:80\n"},
		{
			name: "every section",
			doc: `
http: {addr: ":8080", shutdown_timeout: 5s}
metrics: {addr: ""}
log: {format: text, level: debug}
storage: {driver: sqlite, sqlite_path: a.db, auto_migrate: false}
session: {cookie_name: sid, ttl: 1h30m, cookie_secure: false, sweep_interval: 1m}
hasher: {n: 16384, r: 8, p: 1, max_concurrent: 2}
`,
		},
		{name: "unknown top-level key", doc: "htp:\n  addr: x\n", wantErr: true},
		{name: "unknown nested key", doc: "storage:\n  drvier: sqlite\n", wantErr: true},
		{name: "driver outside enum", doc: "storage:\n  driver: mysql\n", wantErr: true},
		{name: "duration without unit", doc: "session:\n  ttl: \"60\"\n", wantErr: true},
		{name: "number for string", doc: "http:\n  addr: 8080\n", wantErr: true},
		{name: "concurrency below minimum", doc: "hasher:\n  max_concurrent: 0\n", wantErr: true},
		{name: "malformed yaml", doc: "http: [\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument([]byte(tt.doc))
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoad_RejectsUnknownFileKeys(t *testing.T) {
	path := writeConfig(t, "session:\n  tll: 1h\n")

	_, err := Load(path, nil)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	errutil.AssertErrorContext(t, err, "path", path)
}
