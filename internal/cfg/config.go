package cfg

import (
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml"
)

const defMergeGracePeriod = 10 * time.Second

type Config struct {
	GithubAPIToken string `toml:"github_api_token"`

	LogFormat  string `toml:"log_format"`
	LogTimeKey string `toml:"log_time_key"`
	LogLevel   string `toml:"log_level"`

	HTTPListenAddr            string `toml:"http_server_listen_addr"`
	HTTPGithubWebhookEndpoint string `toml:"github_webhook_endpoint"`
	GithubWebHookSecret       string `toml:"github_webhook_secret"`

	DocsRepository DocsRepository `toml:"docs_repository"`
	Site           Site           `toml:"site"`
	PullRequest    PullRequest    `toml:"pull_request"`
	MergeGate      MergeGate      `toml:"merge_gate"`
	ReleasePlan    ReleasePlan    `toml:"release_plan"`
}

// DocsRepository describes the repository that the built documentation site
// is published to.
type DocsRepository struct {
	Owner          string `toml:"owner"`
	RepositoryName string `toml:"repository"`
	CloneURL       string `toml:"clone_url"`
	DefaultBranch  string `toml:"default_branch"`
	// SiteSubdir is the subdirectory in the docs repository that is
	// replaced with the built site on every publish.
	SiteSubdir string `toml:"site_subdir"`
}

type Site struct {
	Command                  string `toml:"command"`
	PublicConfigFile         string `toml:"public_config_file"`
	InsidersConfigFile       string `toml:"insiders_config_file"`
	OutputDir                string `toml:"output_dir"`
	InsidersCredentialEnvVar string `toml:"insiders_credential_env_var"`
}

type PullRequest struct {
	// TitleTemplate is a fmt format string, the only argument is the
	// display name of the published version.
	TitleTemplate string `toml:"title_template"`
	BodyTemplate  string `toml:"body_template"`
	Label         string `toml:"label"`
}

type MergeGate struct {
	// GracePeriod is waited after the pull request was created, before
	// the squash-merge is attempted, to give required status checks time
	// to register. Value is parsed with time.ParseDuration.
	GracePeriod string `toml:"grace_period"`
}

// ReleasePlan configures how the announcement tag is located in a
// release-plan JSON document. The queries are jq expressions.
type ReleasePlan struct {
	AnnouncementTagQuery string `toml:"announcement_tag_query"`
	ImplicitTagQuery     string `toml:"implicit_tag_query"`
}

func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	result.applyDefaults()

	if err := result.validate(); err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *Config) applyDefaults() {
	if r.LogFormat == "" {
		r.LogFormat = "logfmt"
	}

	if r.LogLevel == "" {
		r.LogLevel = "info"
	}

	if r.DocsRepository.DefaultBranch == "" {
		r.DocsRepository.DefaultBranch = "main"
	}

	if r.DocsRepository.SiteSubdir == "" {
		r.DocsRepository.SiteSubdir = "site/uv"
	}

	if r.Site.Command == "" {
		r.Site.Command = "mkdocs"
	}

	if r.Site.PublicConfigFile == "" {
		r.Site.PublicConfigFile = "mkdocs.public.yml"
	}

	if r.Site.InsidersConfigFile == "" {
		r.Site.InsidersConfigFile = "mkdocs.insiders.yml"
	}

	if r.Site.OutputDir == "" {
		r.Site.OutputDir = "site"
	}

	if r.Site.InsidersCredentialEnvVar == "" {
		r.Site.InsidersCredentialEnvVar = "MKDOCS_INSIDERS_SSH_KEY"
	}

	if r.PullRequest.TitleTemplate == "" {
		r.PullRequest.TitleTemplate = "Update uv documentation for %s"
	}

	if r.PullRequest.BodyTemplate == "" {
		r.PullRequest.BodyTemplate = "Automated documentation update for %s."
	}

	if r.PullRequest.Label == "" {
		r.PullRequest.Label = "documentation"
	}

	if r.MergeGate.GracePeriod == "" {
		r.MergeGate.GracePeriod = defMergeGracePeriod.String()
	}

	if r.ReleasePlan.AnnouncementTagQuery == "" {
		r.ReleasePlan.AnnouncementTagQuery = ".announcement_tag"
	}

	if r.ReleasePlan.ImplicitTagQuery == "" {
		r.ReleasePlan.ImplicitTagQuery = ".announcement_tag_is_implicit"
	}
}

func (r *Config) validate() error {
	if _, err := time.ParseDuration(r.MergeGate.GracePeriod); err != nil {
		return fmt.Errorf("merge_gate.grace_period: %w", err)
	}

	return nil
}

// MergeGracePeriod returns the parsed merge-gate grace period.
// Load guarantees that the value is parseable.
func (r *Config) MergeGracePeriod() time.Duration {
	d, _ := time.ParseDuration(r.MergeGate.GracePeriod)
	return d
}

func (r *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(r)
}
