package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/khoji/backend/internal/search"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenProfilePersistsSessionAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.db")

	first, err := openProfile(path, zap.NewNop())
	require.NoError(t, err)
	_, err = first.Identity.Signup("Ada", "ada@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := openProfile(path, zap.NewNop())
	require.NoError(t, err)
	defer second.Close()

	account, ok := second.Identity.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", account.Email)
	assert.Empty(t, account.Password)
}

func TestOutputSearchTableGroupsByPlatform(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	outputSearchTable(cmd, search.Bucket([]search.PersonRecord{
		{Name: "Jane Doe", Source: search.SourceTwitter, Link: "https://twitter.com/jane"},
		{Name: "Jane D", Source: search.SourceLinkedIn, Description: "Engineer"},
	}))

	printed := out.String()
	assert.Contains(t, printed, "LinkedIn (1)")
	assert.Contains(t, printed, "  [1] Jane D\n")
	assert.Contains(t, printed, "Engineer")
	assert.Contains(t, printed, "Twitter (1)")
	assert.Contains(t, printed, "  [1] Jane Doe\n      https://twitter.com/jane\n")
	assert.NotContains(t, printed, "Facebook")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("LinkedIn")), bytes.Index(out.Bytes(), []byte("Twitter")))
}

func TestOutputSearchTableEmpty(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	outputSearchTable(cmd, search.Bucket([]search.PersonRecord{{Name: "x", Source: "Reddit"}}))

	assert.Equal(t, "No results found.\n", out.String())
}

func TestNewSearchLimiter(t *testing.T) {
	assert.Nil(t, newSearchLimiter(0))

	limiter := newSearchLimiter(2)
	require.NotNil(t, limiter)
	assert.Equal(t, 2, limiter.Burst())
	assert.InDelta(t, 2.0/60.0, float64(limiter.Limit()), 1e-9)
	assert.True(t, limiter.AllowN(time.Now(), 2))
}
