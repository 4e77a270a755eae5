// Package releaseplan extracts the announcement tag from a release-plan
// document that an upstream release pipeline produced.
package releaseplan

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/itchyny/gojq"
)

// Plan is the subset of a release-plan document that is relevant for
// publishing documentation.
type Plan struct {
	// AnnouncementTag is the version tag associated with the release.
	AnnouncementTag string
	// AnnouncementTagIsImplicit is true when the tag was inferred by the
	// release pipeline instead of being set explicitly.
	AnnouncementTagIsImplicit bool
}

// Parser locates the announcement tag fields in a release-plan JSON document
// via jq queries.
// Release tooling differs in how the plan document is structured, the queries
// make the location configurable.
type Parser struct {
	tagQuery      *gojq.Query
	implicitQuery *gojq.Query
}

func NewParser(announcementTagQuery, implicitTagQuery string) (*Parser, error) {
	tagQuery, err := gojq.Parse(announcementTagQuery)
	if err != nil {
		return nil, fmt.Errorf("parsing announcement tag query failed: %w", err)
	}

	implicitQuery, err := gojq.Parse(implicitTagQuery)
	if err != nil {
		return nil, fmt.Errorf("parsing implicit tag query failed: %w", err)
	}

	return &Parser{
		tagQuery:      tagQuery,
		implicitQuery: implicitQuery,
	}, nil
}

// Parse evaluates the queries on the JSON document data.
// A query that evaluates to null or to nothing leaves the according Plan
// field on its zero value.
func (p *Parser) Parse(data []byte) (*Plan, error) {
	var doc any

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshalling release plan document failed: %w", err)
	}

	var result Plan

	tagVal, err := runQuery(p.tagQuery, doc)
	if err != nil {
		return nil, fmt.Errorf("evaluating announcement tag query failed: %w", err)
	}

	if tagVal != nil {
		tag, ok := tagVal.(string)
		if !ok {
			return nil, fmt.Errorf("announcement tag query returned a %T, expecting a string", tagVal)
		}

		result.AnnouncementTag = tag
	}

	implicitVal, err := runQuery(p.implicitQuery, doc)
	if err != nil {
		return nil, fmt.Errorf("evaluating implicit tag query failed: %w", err)
	}

	if implicitVal != nil {
		implicit, ok := implicitVal.(bool)
		if !ok {
			return nil, fmt.Errorf("implicit tag query returned a %T, expecting a bool", implicitVal)
		}

		result.AnnouncementTagIsImplicit = implicit
	}

	return &result, nil
}

// ParseFile reads path and parses its content.
func (p *Parser) ParseFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return p.Parse(data)
}

// runQuery evaluates query on doc and returns its first non-null result.
func runQuery(query *gojq.Query, doc any) (any, error) {
	iter := query.Run(doc)

	for {
		res, ok := iter.Next()
		if !ok {
			return nil, nil
		}

		if err, isErr := res.(error); isErr {
			return nil, err
		}

		if res == nil {
			continue
		}

		return res, nil
	}
}
