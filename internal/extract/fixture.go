package extract

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Fixture is the on-disk shape of a canned extraction result.
type Fixture struct {
	DocumentType string         `yaml:"document_type"`
	Parties      []string       `yaml:"parties"`
	Covenants    []RawCandidate `yaml:"covenants"`
}

// FixtureService returns the same canned candidates for every document. It
// backs offline runs and demos where no model is available.
type FixtureService struct {
	fixture Fixture
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (*FixtureService, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read fixture %s", path)
	}
	return ParseFixture(data)
}

// ParseFixture decodes YAML fixture bytes.
func ParseFixture(data []byte) (*FixtureService, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "extract: parse fixture")
	}
	return &FixtureService{fixture: f}, nil
}

// ExtractCovenants implements TextExtractionService.
func (s *FixtureService) ExtractCovenants(ctx context.Context, _ string) ([]RawCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]RawCandidate, len(s.fixture.Covenants))
	copy(out, s.fixture.Covenants)
	return out, nil
}

// DescribeDocument implements DocumentDescriber.
func (s *FixtureService) DescribeDocument(ctx context.Context, _ string) (*DocumentDescription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &DocumentDescription{
		DocumentType: s.fixture.DocumentType,
		Parties:      append([]string(nil), s.fixture.Parties...),
	}, nil
}
