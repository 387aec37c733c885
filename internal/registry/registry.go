// Package registry loads the bot registry and the project manifest.
package registry

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	perrors "github.com/rohankatakam/prtimeline/internal/errors"
	"github.com/rohankatakam/prtimeline/internal/models"
)

// botColumn names the login column when the registry file has a header
const botColumn = "bot"

// LoadBots reads known bot logins from a file. Either a CSV with a "bot" column
// or one login per line is accepted. Logins are lowercased and deduplicated.
func LoadBots(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perrors.FileSystemError(err, "failed to open bot registry").WithContext("path", path)
	}
	defer f.Close()

	bots, err := ParseBots(f)
	if err != nil {
		return nil, perrors.InvalidInput(err, "failed to parse bot registry").WithContext("path", path)
	}
	return bots, nil
}

// ParseBots reads a bot registry from r
func ParseBots(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	column := 0
	body := records
	for i, name := range records[0] {
		if strings.EqualFold(strings.TrimSpace(name), botColumn) {
			column = i
			body = records[1:]
			break
		}
	}

	seen := make(map[string]struct{}, len(body))
	bots := make([]string, 0, len(body))
	for _, record := range body {
		if column >= len(record) {
			continue
		}
		login := strings.ToLower(strings.TrimSpace(record[column]))
		if login == "" {
			continue
		}
		if _, ok := seen[login]; ok {
			continue
		}
		seen[login] = struct{}{}
		bots = append(bots, login)
	}
	sort.Strings(bots)
	return bots, nil
}

// Project is one manifest entry
type Project struct {
	Name string `yaml:"name"`
}

// Manifest lists the projects to derive
type Manifest struct {
	Projects []Project `yaml:"projects"`
}

// LoadProjects reads a YAML project manifest
func LoadProjects(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.FileSystemError(err, "failed to read project manifest").WithContext("path", path)
	}
	m, perr := ParseProjects(data)
	if perr != nil {
		return nil, perr.WithContext("path", path)
	}
	return m, nil
}

// ParseProjects parses and validates a manifest
func ParseProjects(data []byte) (*Manifest, *perrors.Error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, perrors.InvalidInput(err, "invalid project manifest yaml")
	}
	seen := make(map[string]struct{}, len(m.Projects))
	for i, p := range m.Projects {
		name := strings.TrimSpace(p.Name)
		owner, repo, ok := strings.Cut(name, "/")
		if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
			return nil, perrors.ValidationErrorf("project %q is not of the form owner/name", p.Name).
				WithContext("index", i)
		}
		if _, dup := seen[strings.ToLower(name)]; dup {
			return nil, perrors.ValidationErrorf("project %q is listed twice", p.Name).
				WithContext("index", i)
		}
		seen[strings.ToLower(name)] = struct{}{}
		m.Projects[i].Name = name
	}
	return &m, nil
}

// Names returns the project identifiers in manifest order
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Projects))
	for i, p := range m.Projects {
		names[i] = p.Name
	}
	return names
}

// Owners returns the distinct lowercased owners of all projects, sorted
func (m *Manifest) Owners() []string {
	seen := make(map[string]struct{})
	var owners []string
	for _, p := range m.Projects {
		owner := models.Owner(p.Name)
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}
