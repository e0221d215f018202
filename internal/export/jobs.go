// Package export runs saved searches on a schedule and writes their result
// pages as JSONL to one or more destinations.
package export

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/kquery/internal/filter"
)

var jobName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Job is one saved search.
type Job struct {
	Name    string         `yaml:"name"`
	Entity  string         `yaml:"entity"`
	Request filter.Request `yaml:"request"`
}

type jobFile struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadJobs reads a YAML job file:
//
//	jobs:
//	  - name: open-p0
//	    entity: bead
//	    request:
//	      where:
//	        - {op: eq, field: status, value: open}
//	      max_rows: 100
func LoadJobs(path string) ([]Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}
	return ParseJobs(data)
}

// ParseJobs decodes and validates a YAML job document.
func ParseJobs(data []byte) ([]Job, error) {
	var f jobFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse job file: %w", err)
	}
	seen := make(map[string]bool, len(f.Jobs))
	for i, j := range f.Jobs {
		if !jobName.MatchString(j.Name) {
			return nil, fmt.Errorf("job %d: invalid name %q", i, j.Name)
		}
		if seen[j.Name] {
			return nil, fmt.Errorf("job %d: duplicate name %q", i, j.Name)
		}
		seen[j.Name] = true
		if j.Entity == "" {
			return nil, fmt.Errorf("job %s: entity is required", j.Name)
		}
	}
	return f.Jobs, nil
}
