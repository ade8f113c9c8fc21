package git

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRemoteURL_HTTPS(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{
			name:      "HTTPS with .git",
			url:       "https://github.com/stratakb/strata.git",
			wantOwner: "stratakb",
			wantRepo:  "strata",
			wantErr:   false,
		},
		{
			name:      "HTTPS without .git",
			url:       "https://github.com/stratakb/strata",
			wantOwner: "stratakb",
			wantRepo:  "strata",
			wantErr:   false,
		},
		{
			name:      "HTTP with .git",
			url:       "http://github.com/user/repo.git",
			wantOwner: "user",
			wantRepo:  "repo",
			wantErr:   false,
		},
		{
			name:    "malformed HTTPS",
			url:     "https://github.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := parseRemoteURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantOwner, owner)
				assert.Equal(t, tt.wantRepo, repo)
			}
		})
	}
}

func TestParseRemoteURL_SSH(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{
			name:      "SSH with .git",
			url:       "git@github.com:stratakb/strata.git",
			wantOwner: "stratakb",
			wantRepo:  "strata",
			wantErr:   false,
		},
		{
			name:      "SSH without .git",
			url:       "git@github.com:user/repo",
			wantOwner: "user",
			wantRepo:  "repo",
			wantErr:   false,
		},
		{
			name:    "SSH missing path",
			url:     "git@github.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := parseRemoteURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantOwner, owner)
				assert.Equal(t, tt.wantRepo, repo)
			}
		})
	}
}

func TestParseRemoteURL_Unsupported(t *testing.T) {
	_, _, err := parseRemoteURL("ftp://example.com/repo")
	assert.Error(t, err)
}

func TestNamespace(t *testing.T) {
	r := &Repository{Owner: "stratakb", Name: "strata"}
	assert.Equal(t, "github.com/stratakb/strata", r.Namespace())
}

func TestFindGitDir(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, ".git"), 0755))
	nested := filepath.Join(tmpDir, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0755))

	found, err := findGitDir(nested)
	require.NoError(t, err)
	assert.Equal(t, tmpDir, found)
}

func TestFindGitDir_NotARepo(t *testing.T) {
	tmpDir := t.TempDir()
	_, err := findGitDir(tmpDir)
	assert.Error(t, err)
}
