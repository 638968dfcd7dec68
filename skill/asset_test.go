package skill

import (
	"errors"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetKeyFollowsContent(t *testing.T) {
	dir := dummySkillPackage(t)

	first, err := newAsset(dir)
	require.NoError(t, err)
	again, err := newAsset(dir)
	require.NoError(t, err)
	assert.Equal(t, first.key(), again.key())
	assert.Regexp(t, `^[0-9a-f]{64}\.zip$`, first.key())

	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "skill.json"), []byte(`{"manifest":{"changed":true}}`), 0o644))
	changed, err := newAsset(dir)
	require.NoError(t, err)
	assert.NotEqual(t, first.key(), changed.key())
}

func TestAssetRejectsFilesAndMissingPaths(t *testing.T) {
	dir := dummySkillPackage(t)

	_, err := newAsset(filepath.Join(dir, "skill.json"))
	assert.True(t, errors.Is(err, ErrAssetPath))

	_, err = newAsset(filepath.Join(dir, "missing"))
	assert.True(t, errors.Is(err, ErrAssetPath))
}
