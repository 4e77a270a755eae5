package cfg

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exampleConfig = `
github_api_token = "token-from-file"
log_format = "console"
log_level = "debug"

http_server_listen_addr = ":8085"
github_webhook_endpoint = "/listener/github"
github_webhook_secret = "hook-secret"

[docs_repository]
owner = "astral-sh"
repository = "docs"
clone_url = "https://github.com/astral-sh/docs.git"
default_branch = "trunk"
site_subdir = "site/uv"

[site]
command = "mkdocs"
insiders_credential_env_var = "MKDOCS_INSIDERS_SSH_KEY"

[pull_request]
title_template = "Update uv documentation for %s"
label = "docs"

[merge_gate]
grace_period = "30s"

[release_plan]
announcement_tag_query = ".release.tag"
`

func TestLoad(t *testing.T) {
	config, err := Load(strings.NewReader(exampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "token-from-file", config.GithubAPIToken)
	assert.Equal(t, "console", config.LogFormat)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, ":8085", config.HTTPListenAddr)
	assert.Equal(t, "/listener/github", config.HTTPGithubWebhookEndpoint)
	assert.Equal(t, "hook-secret", config.GithubWebHookSecret)

	assert.Equal(t, "astral-sh", config.DocsRepository.Owner)
	assert.Equal(t, "docs", config.DocsRepository.RepositoryName)
	assert.Equal(t, "https://github.com/astral-sh/docs.git", config.DocsRepository.CloneURL)
	assert.Equal(t, "trunk", config.DocsRepository.DefaultBranch)
	assert.Equal(t, "site/uv", config.DocsRepository.SiteSubdir)

	assert.Equal(t, "docs", config.PullRequest.Label)
	assert.Equal(t, 30*time.Second, config.MergeGracePeriod())
	assert.Equal(t, ".release.tag", config.ReleasePlan.AnnouncementTagQuery)
}

func TestLoadAppliesDefaults(t *testing.T) {
	config, err := Load(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, "logfmt", config.LogFormat)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, "main", config.DocsRepository.DefaultBranch)
	assert.Equal(t, "site/uv", config.DocsRepository.SiteSubdir)
	assert.Equal(t, "mkdocs", config.Site.Command)
	assert.Equal(t, "mkdocs.public.yml", config.Site.PublicConfigFile)
	assert.Equal(t, "mkdocs.insiders.yml", config.Site.InsidersConfigFile)
	assert.Equal(t, "site", config.Site.OutputDir)
	assert.Equal(t, "MKDOCS_INSIDERS_SSH_KEY", config.Site.InsidersCredentialEnvVar)
	assert.Equal(t, "Update uv documentation for %s", config.PullRequest.TitleTemplate)
	assert.Equal(t, "Automated documentation update for %s.", config.PullRequest.BodyTemplate)
	assert.Equal(t, "documentation", config.PullRequest.Label)
	assert.Equal(t, 10*time.Second, config.MergeGracePeriod())
	assert.Equal(t, ".announcement_tag", config.ReleasePlan.AnnouncementTagQuery)
	assert.Equal(t, ".announcement_tag_is_implicit", config.ReleasePlan.ImplicitTagQuery)
}

func TestLoadFailsOnInvalidGracePeriod(t *testing.T) {
	_, err := Load(strings.NewReader("[merge_gate]\ngrace_period = \"soon\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merge_gate.grace_period")
}

func TestLoadFailsOnMalformedToml(t *testing.T) {
	_, err := Load(strings.NewReader("github_api_token = "))
	assert.Error(t, err)
}

func TestMarshalRoundtrip(t *testing.T) {
	config, err := Load(strings.NewReader(exampleConfig))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, config.Marshal(&buf))

	reloaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, config, reloaded)
}
