package publish

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/simplesurance/docpub/internal/releaseplan"
)

func TestAutoMergeEligible(t *testing.T) {
	testcases := []struct {
		name       string
		releaseCtx *ReleaseContext
		expected   bool
	}{
		{
			name: "explicitTag",
			releaseCtx: &ReleaseContext{
				Plan: &releaseplan.Plan{AnnouncementTag: "0.8.4"},
			},
			expected: true,
		},
		{
			name: "implicitTag",
			releaseCtx: &ReleaseContext{
				Plan: &releaseplan.Plan{
					AnnouncementTag:           "0.8.4",
					AnnouncementTagIsImplicit: true,
				},
			},
			expected: false,
		},
		{
			name: "planWithoutTag",
			releaseCtx: &ReleaseContext{
				Plan: &releaseplan.Plan{},
			},
			expected: false,
		},
		{
			name:       "manualDispatch",
			releaseCtx: &ReleaseContext{Ref: "main"},
			expected:   false,
		},
		{
			name:       "noTrigger",
			releaseCtx: nil,
			expected:   false,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, autoMergeEligible(tc.releaseCtx))
		})
	}
}
