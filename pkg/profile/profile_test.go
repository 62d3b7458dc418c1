package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	p := Default()

	assert.Equal(t, "Kartikay Luthra", p.Name)
	assert.Contains(t, p.Information(), "open and free internet access")
	assert.Len(t, p.Education, 2)
	assert.Len(t, p.Experience, 2)
	assert.Len(t, p.Projects, 5)
}

func TestProfile_Resume(t *testing.T) {
	resume := Default().Resume()

	for _, want := range []string{
		"Kartikay Luthra",
		"Queen Mary University of London, MSc Artificial Intelligence and Machine Learning, 2024 – 2025",
		"Fusionpact Technologies – Software Developer (July 2023 – April 2024)",
		"- Reduced model inference latency by 3x",
		"- Quant Risk Engine",
		"Languages: Python, Java, Scala, C++",
		"Certifications: HackerRank (DS, Software Engineer, SQL)",
	} {
		assert.Contains(t, resume, want)
	}
}

func TestProfile_ExperienceAndProjects(t *testing.T) {
	p := Default()

	assert.Contains(t, p.ExperienceText(), "Software Developer Intern (Jan 2023 – July 2023)")
	assert.Equal(t, "- NYT Connections Solver Bot", firstLine(p.ProjectsText()))
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("{"))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"bio": "no name"}`))
	assert.Error(t, err)
}

func TestStore_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name": "Ada", "bio": "first"}`), 0o644))

	store, err := NewStore(path)
	require.NoError(t, err)
	assert.Equal(t, "first", store.Get().Information())

	require.NoError(t, os.WriteFile(path, []byte(`{"name": "Ada", "bio": "second"}`), 0o644))
	require.NoError(t, store.Reload())
	assert.Equal(t, "second", store.Get().Information())

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	assert.Error(t, store.Reload())
	assert.Equal(t, "second", store.Get().Information())
}

func TestStore_BuiltIn(t *testing.T) {
	store, err := NewStore("")
	require.NoError(t, err)
	assert.Equal(t, "Kartikay Luthra", store.Get().Name)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name": "Ada", "bio": "first"}`), 0o644))

	store, err := NewStore(path)
	require.NoError(t, err)

	reloaded := make(chan *Profile, 4)
	w, err := NewWatcher(store, zerolog.Nop(), func(p *Profile) { reloaded <- p })
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(`{"name": "Ada", "bio": "updated"}`), 0o644))

	select {
	case p := <-reloaded:
		assert.Equal(t, "updated", p.Information())
	case <-time.After(3 * time.Second):
		t.Fatal("profile was not reloaded")
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	content := `name: Ada
bio: Writes programs for engines.
experience:
  - company: Analytical Engine
    title: Programmer
    period: "1842"
    highlights:
      - First published algorithm
projects:
  - Note G
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, "Writes programs for engines.", p.Information())
	require.Len(t, p.Experience, 1)
	assert.Equal(t, "Programmer", p.Experience[0].Title)
	assert.Equal(t, []string{"Note G"}, p.Projects)

	_, err = ParseYAML([]byte("bio: nameless\n"))
	assert.Error(t, err)
}
