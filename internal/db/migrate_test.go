package db

import (
	"strings"
	"testing"
)

func TestMigrationNames(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatalf("migrationNames() error = %v", err)
	}
	if len(names) != 2 || names[0] != "001_init.sql" || names[1] != "002_platform_id_unique.sql" {
		t.Fatalf("migrationNames() = %v", names)
	}
}

func TestSchemaDefinesConflictKeys(t *testing.T) {
	content, err := migrationFS.ReadFile("migrations/001_init.sql")
	if err != nil {
		t.Fatal(err)
	}
	schema := string(content)

	for _, want := range []string{
		"slug        TEXT NOT NULL UNIQUE",
		"PRIMARY KEY (artist_id, platform)",
		"PRIMARY KEY (platform, track_id)",
		"PRIMARY KEY (platform, video_id)",
		"PRIMARY KEY (artist_id, platform, track_id)",
		"PRIMARY KEY (artist_id, platform, video_id)",
		"view_count",
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("schema missing %q", want)
		}
	}

	metrics := schema[strings.Index(schema, "CREATE TABLE IF NOT EXISTS artist_metrics"):]
	metrics = metrics[:strings.Index(metrics, ");")]
	if strings.Contains(metrics, "UNIQUE") {
		t.Error("artist_metrics must stay append-only")
	}
}

func TestSchemaPlatformIDsAreUnique(t *testing.T) {
	content, err := migrationFS.ReadFile("migrations/002_platform_id_unique.sql")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "UNIQUE (platform, platform_id)") {
		t.Errorf("artist_platform_ids lacks a (platform, platform_id) key:\n%s", content)
	}
}
