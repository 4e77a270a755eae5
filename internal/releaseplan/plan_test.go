package releaseplan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defTagQuery      = ".announcement_tag"
	defImplicitQuery = ".announcement_tag_is_implicit"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		tagQuery      string
		implicitQuery string
		document      string
		want          Plan
	}{
		{
			name:          "explicit tag",
			tagQuery:      defTagQuery,
			implicitQuery: defImplicitQuery,
			document:      `{"announcement_tag": "0.8.4", "announcement_tag_is_implicit": false}`,
			want:          Plan{AnnouncementTag: "0.8.4"},
		},
		{
			name:          "implicit tag",
			tagQuery:      defTagQuery,
			implicitQuery: defImplicitQuery,
			document:      `{"announcement_tag": "0.8.4", "announcement_tag_is_implicit": true}`,
			want:          Plan{AnnouncementTag: "0.8.4", AnnouncementTagIsImplicit: true},
		},
		{
			name:          "missing fields keep zero values",
			tagQuery:      defTagQuery,
			implicitQuery: defImplicitQuery,
			document:      `{"crates": []}`,
			want:          Plan{},
		},
		{
			name:          "null fields keep zero values",
			tagQuery:      defTagQuery,
			implicitQuery: defImplicitQuery,
			document:      `{"announcement_tag": null, "announcement_tag_is_implicit": null}`,
			want:          Plan{},
		},
		{
			name:          "nested custom queries",
			tagQuery:      ".release.tag",
			implicitQuery: ".release.tag_is_implicit",
			document:      `{"release": {"tag": "1.2.3", "tag_is_implicit": false}}`,
			want:          Plan{AnnouncementTag: "1.2.3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser, err := NewParser(tt.tagQuery, tt.implicitQuery)
			require.NoError(t, err)

			plan, err := parser.Parse([]byte(tt.document))
			require.NoError(t, err)
			assert.Equal(t, tt.want, *plan)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		document string
	}{
		{
			name:     "malformed json",
			document: `{"announcement_tag":`,
		},
		{
			name:     "tag has wrong type",
			document: `{"announcement_tag": 42}`,
		},
		{
			name:     "implicit flag has wrong type",
			document: `{"announcement_tag": "0.8.4", "announcement_tag_is_implicit": "yes"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser, err := NewParser(defTagQuery, defImplicitQuery)
			require.NoError(t, err)

			plan, err := parser.Parse([]byte(tt.document))
			require.Error(t, err)
			assert.Nil(t, plan)
		})
	}
}

func TestNewParserInvalidQuery(t *testing.T) {
	_, err := NewParser(".[", defImplicitQuery)
	assert.Error(t, err)

	_, err = NewParser(defTagQuery, ".[")
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "release-plan.json")
	err := os.WriteFile(path, []byte(`{"announcement_tag": "0.9.0", "announcement_tag_is_implicit": false}`), 0o600)
	require.NoError(t, err)

	parser, err := NewParser(defTagQuery, defImplicitQuery)
	require.NoError(t, err)

	plan, err := parser.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0.9.0", plan.AnnouncementTag)
	assert.False(t, plan.AnnouncementTagIsImplicit)

	_, err = parser.ParseFile(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.Error(t, err)
}
