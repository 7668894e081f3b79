package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-autopilot/internal/config"
)

func TestNewFromConfig(t *testing.T) {
	off := false
	adapters, err := NewFromConfig([]config.SourceConfig{
		{Name: "remotive", Kind: "feed", URL: "https://remotive.test/api?search={keyword}", QuotaLimited: true},
		{Name: "careers", Kind: "board", URL: "https://jobs.lever.co/acme"},
		{Name: "old", Kind: "feed", URL: "https://old.test", Enabled: &off},
	}, nil)
	require.NoError(t, err)
	require.Len(t, adapters, 2)

	assert.Equal(t, "remotive", adapters[0].Name())
	assert.True(t, adapters[0].QuotaLimited())
	assert.IsType(t, &BoardAdapter{}, adapters[1])
}

func TestNewFromConfig_UnknownKind(t *testing.T) {
	_, err := NewFromConfig([]config.SourceConfig{{Name: "x", Kind: "ftp"}}, nil)
	assert.Error(t, err)
}
