package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evalDir returns dir with symlinks resolved so assertions match normalize.
func evalDir(t *testing.T, dir string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	return resolved
}

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	s, path := openStore(t)

	assert.DirExists(t, filepath.Dir(path))
	_, err := s.ResolveVault("/anywhere")
	assert.ErrorIs(t, err, ErrNoVaultConfigured)

	freq, set, err := s.AuditFrequency()
	require.NoError(t, err)
	assert.False(t, set)
	assert.Zero(t, freq)
}

func TestOpen_CorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrStateCorrupted)
}

func TestBindVault_FirstBindingBecomesDefault(t *testing.T) {
	s, _ := openStore(t)
	v1 := evalDir(t, t.TempDir())
	v2 := evalDir(t, t.TempDir())

	b, err := s.BindVault(v1, "/work/one")
	require.NoError(t, err)
	assert.Equal(t, v1, b.Vault)
	assert.Equal(t, "/work/one", b.Workspace)

	_, err = s.BindVault(v2, "/work/two")
	require.NoError(t, err)

	def, err := s.DefaultVault()
	require.NoError(t, err)
	assert.Equal(t, v1, def)

	got, err := s.ResolveVault("/elsewhere")
	require.NoError(t, err)
	assert.Equal(t, v1, got)
}

func TestBindVault_RebindOverwrites(t *testing.T) {
	s, _ := openStore(t)
	v1 := evalDir(t, t.TempDir())
	v2 := evalDir(t, t.TempDir())

	_, err := s.BindVault(v1, "/work/one")
	require.NoError(t, err)
	_, err = s.BindVault(v2, "/work/one")
	require.NoError(t, err)

	got, err := s.ResolveVault("/work/one")
	require.NoError(t, err)
	assert.Equal(t, v2, got)

	bindings, err := s.Bindings()
	require.NoError(t, err)
	assert.Len(t, bindings, 1)
}

func TestBindVault_InvalidPath(t *testing.T) {
	s, _ := openStore(t)
	file := filepath.Join(t.TempDir(), "file.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

	tests := map[string]string{
		"missing":       filepath.Join(t.TempDir(), "does-not-exist"),
		"not directory": file,
		"empty":         "  ",
	}
	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := s.BindVault(path, "/work")
			assert.ErrorIs(t, err, ErrInvalidVaultPath)
		})
	}

	def, err := s.DefaultVault()
	require.NoError(t, err)
	assert.Empty(t, def)
}

func TestResolveVault_DeepestAncestorWins(t *testing.T) {
	s, _ := openStore(t)
	v1 := evalDir(t, t.TempDir())
	v2 := evalDir(t, t.TempDir())

	_, err := s.BindVault(v1, "/a")
	require.NoError(t, err)
	_, err = s.BindVault(v2, "/a/b")
	require.NoError(t, err)

	tests := []struct {
		workspace string
		want      string
	}{
		{"/a/b/c", v2},
		{"/a/b", v2},
		{"/a/x", v1},
		{"/a", v1},
		{"/a/b/../x", v1},
	}
	for _, tt := range tests {
		t.Run(tt.workspace, func(t *testing.T) {
			got, err := s.ResolveVault(tt.workspace)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveVault_MissingPathUnderSymlink(t *testing.T) {
	s, _ := openStore(t)
	v0 := evalDir(t, t.TempDir())
	v1 := evalDir(t, t.TempDir())

	root := t.TempDir()
	other := filepath.Join(root, "other")
	target := filepath.Join(root, "real")
	link := filepath.Join(root, "link")
	require.NoError(t, os.MkdirAll(other, 0o755))
	require.NoError(t, os.MkdirAll(target, 0o755))
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	_, err := s.BindVault(v0, other)
	require.NoError(t, err)
	_, err = s.BindVault(v1, link)
	require.NoError(t, err)

	got, err := s.ResolveVault(filepath.Join(link, "not-yet-created", "deeper"))
	require.NoError(t, err)
	assert.Equal(t, v1, got, "missing tail must resolve through the link")

	got, err = s.ResolveVault(filepath.Join(target, "not-yet-created"))
	require.NoError(t, err)
	assert.Equal(t, v1, got)
}

func TestNormalize_ResolvesDeepestExistingAncestor(t *testing.T) {
	root := evalDir(t, t.TempDir())
	target := filepath.Join(root, "real")
	require.NoError(t, os.MkdirAll(target, 0o755))
	if err := os.Symlink(target, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	got, err := normalize(filepath.Join(root, "link", "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(target, "a", "b"), got)

	got, err = normalize(filepath.Join(root, "missing", "..", "real"))
	require.NoError(t, err)
	assert.Equal(t, target, got)
}

func TestBindVault_EmptyWorkspaceSetsDefaultOnly(t *testing.T) {
	s, _ := openStore(t)
	v := evalDir(t, t.TempDir())

	b, err := s.BindVault(v, "")
	require.NoError(t, err)
	assert.Empty(t, b.Workspace)

	bindings, err := s.Bindings()
	require.NoError(t, err)
	assert.Empty(t, bindings)

	got, err := s.ResolveVault("/any/where")
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestAuditFrequency(t *testing.T) {
	s, _ := openStore(t)

	require.NoError(t, s.SetAuditFrequency(3))
	freq, set, err := s.AuditFrequency()
	require.NoError(t, err)
	assert.True(t, set)
	assert.Equal(t, 3, freq)

	require.NoError(t, s.SetAuditFrequency(0))
	freq, set, err = s.AuditFrequency()
	require.NoError(t, err)
	assert.True(t, set)
	assert.Zero(t, freq)

	assert.ErrorIs(t, s.SetAuditFrequency(-1), ErrNegativeFrequency)
}

func TestRunCounter_BumpAndReset(t *testing.T) {
	s, _ := openStore(t)

	for want := 1; want <= 3; want++ {
		got, err := s.BumpRunCounter("/ws", "alpha")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, err := s.BumpRunCounter("/ws", "beta")
	require.NoError(t, err)
	assert.Equal(t, 1, other)

	require.NoError(t, s.ResetRunCounter("/ws", "alpha"))
	n, err := s.RunCounter("/ws", "alpha")
	require.NoError(t, err)
	assert.Zero(t, n)

	next, err := s.BumpRunCounter("/ws", "alpha")
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	n, err = s.RunCounter("/ws", "beta")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResetRunCounter_UnknownKeyIsNoop(t *testing.T) {
	s, _ := openStore(t)
	require.NoError(t, s.ResetRunCounter("/never", "seen"))

	n, err := s.RunCounter("/never", "seen")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPersistence_DocumentShape(t *testing.T) {
	s, path := openStore(t)
	v := evalDir(t, t.TempDir())

	_, err := s.BindVault(v, "/ws")
	require.NoError(t, err)
	_, err = s.BumpRunCounter("/ws", "proj")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, v, raw["default_vault_path"])
	assert.Equal(t, map[string]interface{}{"/ws": v}, raw["workspace_vaults"])
	assert.NotContains(t, raw, "audit_frequency")
	assert.Equal(t, map[string]interface{}{"/ws": map[string]interface{}{"proj": float64(1)}}, raw["run_counters"])

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestPersistence_SeenByOtherStore(t *testing.T) {
	s1, path := openStore(t)
	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	_, err = s1.BumpRunCounter("/ws", "proj")
	require.NoError(t, err)
	n, err := s2.BumpRunCounter("/ws", "proj")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s2.SetAuditFrequency(7))
	freq, _, err := s1.AuditFrequency()
	require.NoError(t, err)
	assert.Equal(t, 7, freq)
}

func TestLegacyDocumentWithoutCounters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"default_vault_path": "", "workspace_vaults": null}`), 0600))

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.BumpRunCounter("/ws", "p")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClose_Idempotent(t *testing.T) {
	s, _ := openStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.ResolveVault("/x")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, s.SetAuditFrequency(1), ErrStoreClosed)
}
