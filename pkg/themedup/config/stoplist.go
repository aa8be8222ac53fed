package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/themedup/pkg/themedup/stoplist"
)

// Stoplist is a stop-word file. Terms extend the built-in English list
// unless Replace is set.
type Stoplist struct {
	Terms   []string `yaml:"terms"`
	Replace bool     `yaml:"replace"`
}

// LoadStoplist loads stopwords from a YAML file
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}

	return &sl, nil
}

// Manager builds the stop-word manager described by the file
func (s *Stoplist) Manager() *stoplist.Manager {
	if s == nil {
		return stoplist.Default()
	}
	if s.Replace {
		return stoplist.NewManager(s.Terms)
	}
	m := stoplist.Default()
	m.Add(s.Terms...)
	return m
}
