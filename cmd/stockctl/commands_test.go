package main

import (
	"bytes"
	"strings"
	"testing"
)

// Each case fails before any configuration is read, so no database is needed.
func TestCommandValidation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"reset requires confirmation", []string{"reset"}, "--yes"},
		{"migrate takes no args", []string{"migrate", "extra"}, "unknown command"},
		{"passwd requires email", []string{"user", "passwd"}, "accepts 1 arg"},
		{"passwd requires password", []string{"user", "passwd", "ana@example.com"}, "--password is required"},
		{"create requires fields", []string{"user", "create"}, "validation"},
		{"create rejects short password", []string{"user", "create", "--name", "Ana", "--email", "ana@example.com",
			"--username", "ana", "--password", "123"}, "password"},
		{"create rejects unknown role", []string{"user", "create", "--name", "Ana", "--email", "ana@example.com",
			"--username", "ana", "--password", "secreto", "--role", "root"}, "admin or usuario"},
		{"audit purge rejects zero days", []string{"audit", "purge", "--days", "0"}, "--days must be positive"},
		{"settings list requires table", []string{"settings", "list"}, "accepts 1 arg"},
		{"settings list rejects unknown table", []string{"settings", "list", "pg_user"}, `unknown table "pg_user"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if err == nil {
				t.Fatalf("Execute(%v) succeeded, want error containing %q", tt.args, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"migrate"},
		{"reset"},
		{"audit", "purge"},
		{"user", "create"},
		{"user", "passwd"},
		{"stock", "refresh"},
		{"stock", "low"},
		{"settings", "list"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil {
			t.Errorf("Find(%v): %v", path, err)
			continue
		}
		if cmd.Name() != path[len(path)-1] {
			t.Errorf("Find(%v) = %q", path, cmd.Name())
		}
	}
}

func TestTableKeysIncludeSettingsTables(t *testing.T) {
	keys := strings.Join(tableKeys(), ",")
	for _, want := range []string{"categorias", "marcas", "usuarios", "productos"} {
		if !strings.Contains(keys, want) {
			t.Errorf("tableKeys() = %s, missing %s", keys, want)
		}
	}
}
