// Package profile holds the candidate profile the tools answer from.
package profile

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.json
var defaultProfile []byte

// Education is one degree
type Education struct {
	Institution string `json:"institution" yaml:"institution"`
	Degree      string `json:"degree" yaml:"degree"`
	Period      string `json:"period" yaml:"period"`
}

// Role is one position held
type Role struct {
	Company    string   `json:"company" yaml:"company"`
	Title      string   `json:"title" yaml:"title"`
	Period     string   `json:"period" yaml:"period"`
	Highlights []string `json:"highlights" yaml:"highlights"`
}

// SkillGroup is a labelled list of skills
type SkillGroup struct {
	Label string   `json:"label" yaml:"label"`
	Items []string `json:"items" yaml:"items"`
}

// Profile is the candidate profile
type Profile struct {
	Name       string       `json:"name" yaml:"name"`
	Bio        string       `json:"bio" yaml:"bio"`
	Education  []Education  `json:"education" yaml:"education"`
	Experience []Role       `json:"experience" yaml:"experience"`
	Projects   []string     `json:"projects" yaml:"projects"`
	Skills     []SkillGroup `json:"skills" yaml:"skills"`
}

// Default returns the built-in profile
func Default() *Profile {
	p, err := Parse(defaultProfile)
	if err != nil {
		panic(fmt.Sprintf("profile: invalid built-in profile: %v", err))
	}
	return p
}

// Load reads a profile from a JSON or YAML file, chosen by extension
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return Parse(data)
	}
}

// Parse decodes and validates a JSON profile
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return p.validate()
}

// ParseYAML decodes and validates a YAML profile
func ParseYAML(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return p.validate()
}

func (p *Profile) validate() (*Profile, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("profile name is required")
	}
	return p, nil
}

// Information returns the short biography
func (p *Profile) Information() string {
	return p.Bio
}

// ExperienceText renders the work history
func (p *Profile) ExperienceText() string {
	var b strings.Builder
	for i, role := range p.Experience {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s – %s (%s)\n", role.Company, role.Title, role.Period)
		for _, h := range role.Highlights {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// ProjectsText renders the project list
func (p *Profile) ProjectsText() string {
	lines := make([]string, 0, len(p.Projects))
	for _, project := range p.Projects {
		lines = append(lines, "- "+project)
	}
	return strings.Join(lines, "\n")
}

// Resume renders the full resume
func (p *Profile) Resume() string {
	var b strings.Builder

	b.WriteString(p.Name + "\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")

	b.WriteString("Education\n")
	for _, e := range p.Education {
		fmt.Fprintf(&b, "%s, %s, %s\n", e.Institution, e.Degree, e.Period)
	}

	b.WriteString("\nWork Experience\n")
	b.WriteString(p.ExperienceText() + "\n")

	b.WriteString("\nProjects & Open-Source Contributions\n")
	b.WriteString(p.ProjectsText() + "\n")

	b.WriteString("\nSkills & Certifications\n")
	for _, s := range p.Skills {
		fmt.Fprintf(&b, "%s: %s\n", s.Label, strings.Join(s.Items, ", "))
	}

	return b.String()
}
