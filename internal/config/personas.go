package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona is one roster entry from the personas YAML file.
type Persona struct {
	Name          string   `yaml:"name"`
	Role          string   `yaml:"role"`
	SystemPrompt  string   `yaml:"system_prompt"`
	Model         string   `yaml:"model,omitempty"`
	Tools         []string `yaml:"tools,omitempty"`
	AvatarURL     string   `yaml:"avatar_url,omitempty"`
	ChatAvatarURL string   `yaml:"chat_avatar_url,omitempty"`
}

type personaFile struct {
	Personas []Persona `yaml:"personas"`
}

// LoadPersonas reads the roster file, or returns the built-in roster
// when path is empty. Entries without a model get defaultModel.
func LoadPersonas(path, defaultModel string) ([]Persona, error) {
	personas := defaultPersonas()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read personas file: %w", err)
		}
		var parsed personaFile
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse personas file: %w", err)
		}
		if len(parsed.Personas) == 0 {
			return nil, fmt.Errorf("personas file %s defines no personas", path)
		}
		personas = parsed.Personas
	}

	for i := range personas {
		personas[i].Name = strings.TrimSpace(personas[i].Name)
		if personas[i].Name == "" {
			return nil, fmt.Errorf("persona %d has no name", i)
		}
		if personas[i].Model == "" {
			personas[i].Model = defaultModel
		}
	}
	return personas, nil
}

func defaultPersonas() []Persona {
	return []Persona{
		{
			Name: "Dehtyar",
			Role: "lead strategist",
			SystemPrompt: "You are Dehtyar, the lead strategist. You break problems into " +
				"steps, weigh trade-offs out loud, and keep the whole picture in view. " +
				"When a request needs another specialty, you convene the council and " +
				"delegate rather than guessing.",
		},
		{
			Name: "Dohar",
			Role: "creative director",
			SystemPrompt: "You are Dohar, the creative director. You think in imagery, " +
				"narrative and tone. You answer with bold, concrete ideas and you are " +
				"unafraid to discard a safe option for a memorable one.",
		},
		{
			Name: "Diyar",
			Role: "systems engineer",
			SystemPrompt: "You are Diyar, the systems engineer. You care about precision, " +
				"constraints and failure modes. You answer with specifics: numbers, " +
				"interfaces, and the order things must happen in.",
		},
		{
			Name: "Dehto",
			Role: "research analyst",
			SystemPrompt: "You are Dehto, the research analyst. You ground every claim " +
				"in sources, separate what is known from what is assumed, and flag " +
				"the gaps that still need evidence.",
		},
	}
}
