package job

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadJobsFromDir reads every *.yml and *.yaml file under dir. Job names must
// be unique across files.
func LoadJobsFromDir(dir string) ([]HttpJob, error) {
	var jobs []HttpJob
	seen := make(map[string]string)

	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !isYAML(path) {
			return nil
		}

		job, err := LoadJobFile(path)
		if err != nil {
			return err
		}
		if prev, ok := seen[job.Name]; ok {
			return fmt.Errorf("duplicate job name %q in %s and %s", job.Name, prev, path)
		}
		seen[job.Name] = path
		jobs = append(jobs, *job)
		return nil
	}); err != nil {
		return nil, err
	}
	return jobs, nil
}

// LoadJobFile reads and validates a single job definition.
func LoadJobFile(path string) (*HttpJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var job HttpJob
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &job, nil
}

func isYAML(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yml" || ext == ".yaml"
}
