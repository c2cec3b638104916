package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/erp/commerce-recurly/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"create gateway configurations", "create_gateway_configurations"},
		{"Add-Custom-Fields", "add_custom_fields"},
		{"ADD_MODE_CHECK", "add_mode_check"},
		{"add__plan__types", "add_plan_types"},
		{"Add Index 2", "add_index_2"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "create gateway configurations", "Per-gateway credentials")
	require.NoError(t, err)
	assert.Equal(t, "000001", first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_create_gateway_configurations.up.sql"), first.UpPath)
	assert.Equal(t, filepath.Join(dir, "000001_create_gateway_configurations.down.sql"), first.DownPath)

	up, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "create gateway configurations")
	assert.Contains(t, string(up), "Per-gateway credentials")

	down, err := os.ReadFile(first.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback")

	second, err := CreateMigration(dir, "add custom fields", "")
	require.NoError(t, err)
	assert.Equal(t, "000002", second.Version)
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(nested, "init", "")
	require.NoError(t, err)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_add_custom_fields.up.sql":   {Data: []byte("--")},
		"000002_add_custom_fields.down.sql": {Data: []byte("--")},
		"000001_init.up.sql":                {Data: []byte("--")},
		"000003_no_down.up.sql":             {Data: []byte("--")},
		"README.md":                         {Data: []byte("notes")},
		"notanumber_x.up.sql":               {Data: []byte("--")},
	}

	list, err := ListMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, "000001_init", list[0].String())
	assert.False(t, list[0].HasDown)
	assert.Equal(t, "000002_add_custom_fields", list[1].String())
	assert.True(t, list[1].HasDown)
	assert.Equal(t, 3, list[2].Number)
}

func TestEmbeddedMigrations(t *testing.T) {
	list, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, list)

	for i, m := range list {
		assert.Equal(t, i+1, m.Number, "versions are contiguous")
		assert.True(t, m.HasDown, "%s has a rollback", m)
	}
	assert.Equal(t, "000001_create_gateway_configurations", list[0].String())
}
