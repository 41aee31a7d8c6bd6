package vision

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineMissingFaceCascade(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-cascade.xml")

	engine, err := NewEngine(missing, missing)
	require.Error(t, err)
	assert.Nil(t, engine)
	assert.Contains(t, err.Error(), "face cascade")
}

func TestDetectRejectsNilFrame(t *testing.T) {
	e := &engine{loaded: true}

	_, err := e.Detect(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)
}
