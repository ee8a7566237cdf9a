package preferences

import (
	"testing"

	"github.com/nfrund/signin/internal/domain"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSet(t *testing.T) {
	seed := map[string]string{domain.PrefLastAuthTab: "password"}
	m := NewMemory(seed)
	seed[domain.PrefLastAuthTab] = "magic"

	v, ok := m.Get(domain.PrefLastAuthTab)
	require.True(t, ok)
	assert.Equal(t, "password", v, "seed map is copied")

	_, ok = m.Get(domain.PrefReferralCode)
	assert.False(t, ok)

	require.NoError(t, m.Set(domain.PrefReferralCode, "FRIEND"))
	assert.Equal(t, map[string]string{domain.PrefLastAuthTab: "password", domain.PrefReferralCode: "FRIEND"}, m.Values())
}

func TestFileStore_RoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	path := "/home/u/.config/signin/preferences.json"

	s, err := OpenFile(fsys, path)
	require.NoError(t, err)
	_, ok := s.Get(domain.PrefLastAuthTab)
	assert.False(t, ok, "missing file is an empty store")

	require.NoError(t, s.Set(domain.PrefLastAuthTab, "password"))
	exists, err := afero.Exists(fsys, path)
	require.NoError(t, err)
	assert.True(t, exists)

	reopened, err := OpenFile(fsys, path)
	require.NoError(t, err)
	v, ok := reopened.Get(domain.PrefLastAuthTab)
	require.True(t, ok)
	assert.Equal(t, "password", v)
}

func TestFileStore_CorruptFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/p.json", []byte("{not json"), 0o600))

	_, err := OpenFile(fsys, "/p.json")
	assert.Error(t, err)
}

func TestFileStore_NullFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/p.json", []byte("null"), 0o600))

	s, err := OpenFile(fsys, "/p.json")
	require.NoError(t, err)
	_, ok := s.Get(domain.PrefLastAuthTab)
	assert.False(t, ok)

	require.NoError(t, s.Set(domain.PrefLastAuthTab, "magic"))
	v, ok := s.Get(domain.PrefLastAuthTab)
	require.True(t, ok)
	assert.Equal(t, "magic", v)
}

func TestFileStore_ReadOnlyFs(t *testing.T) {
	base := afero.NewMemMapFs()
	s, err := OpenFile(afero.NewReadOnlyFs(base), "/p.json")
	require.NoError(t, err)

	assert.Error(t, s.Set(domain.PrefLastAuthTab, "magic"))
	_, ok := s.Get(domain.PrefLastAuthTab)
	assert.False(t, ok, "failed writes leave the store unchanged")
}

func TestCopy(t *testing.T) {
	src := NewMemory(map[string]string{domain.PrefReferralCode: "ABC", "other": "x"})
	dst := NewMemory(map[string]string{domain.PrefLastAuthTab: "magic"})

	require.NoError(t, Copy(dst, src))
	assert.Equal(t, map[string]string{domain.PrefLastAuthTab: "magic", domain.PrefReferralCode: "ABC"}, dst.Values())
}
