// Package script holds the immutable interview configuration: who the agent
// plays, how it opens, and the ordered questions every participant must be asked.
package script

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrNoQuestions = errors.New("script has no questions")

// Question is one mandatory interview question. Order in Script.Questions is interview order.
type Question struct {
	ID         string `yaml:"id" json:"id"`
	PromptText string `yaml:"prompt_text" json:"prompt_text"`
}

// Floor forces the stage to at least MinStage once the participant has taken
// AfterTurns turns, bounding interview length when the judge never confirms.
type Floor struct {
	AfterTurns int `yaml:"after_turns" json:"after_turns"`
	MinStage   int `yaml:"min_stage" json:"min_stage"`
}

// Tags are the line prefixes used by the survey platform's transcript.
type Tags struct {
	User     string `yaml:"user" json:"user"`
	Director string `yaml:"director" json:"director"`
}

type Script struct {
	Name          string     `yaml:"name"`
	Persona       string     `yaml:"persona"`
	Opening       string     `yaml:"opening"`
	Questions     []Question `yaml:"questions"`
	Floors        []Floor    `yaml:"floors"`
	RepetitionCap int        `yaml:"repetition_cap"`
	Tags          Tags       `yaml:"tags"`
}

// Len returns N, the terminal stage.
func (s *Script) Len() int {
	return len(s.Questions)
}

// Question returns the question asked at stage i, or false when i is terminal or out of range.
func (s *Script) Question(i int) (Question, bool) {
	if i < 0 || i >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[i], true
}

// Validate checks the script is usable by the progression engine.
func (s *Script) Validate() error {
	if len(s.Questions) == 0 {
		return ErrNoQuestions
	}
	ids := make(map[string]bool, len(s.Questions))
	prompts := make(map[string]bool, len(s.Questions))
	for i, q := range s.Questions {
		if strings.TrimSpace(q.ID) == "" {
			return fmt.Errorf("question %d: empty id", i)
		}
		if strings.TrimSpace(q.PromptText) == "" {
			return fmt.Errorf("question %q: empty prompt_text", q.ID)
		}
		if ids[q.ID] {
			return fmt.Errorf("question %q: duplicate id", q.ID)
		}
		key := strings.ToLower(strings.TrimSpace(q.PromptText))
		if prompts[key] {
			return fmt.Errorf("question %q: duplicate prompt_text", q.ID)
		}
		ids[q.ID] = true
		prompts[key] = true
	}
	for _, f := range s.Floors {
		if f.AfterTurns < 1 {
			return fmt.Errorf("floor after_turns must be >= 1, got %d", f.AfterTurns)
		}
		if f.MinStage < 0 || f.MinStage > len(s.Questions) {
			return fmt.Errorf("floor min_stage %d out of range [0,%d]", f.MinStage, len(s.Questions))
		}
	}
	if s.RepetitionCap < 1 {
		return fmt.Errorf("repetition_cap must be >= 1, got %d", s.RepetitionCap)
	}
	if s.Tags.User == "" || s.Tags.Director == "" {
		return fmt.Errorf("transcript tags must both be set")
	}
	return nil
}

// Load reads a YAML script from path. Fields the file leaves out keep the
// built-in defaults, except questions and floors which replace the defaults wholesale.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML script document over the defaults and validates it.
func Parse(data []byte) (*Script, error) {
	s := Default()
	var file Script
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}

	if file.Name != "" {
		s.Name = file.Name
	}
	if file.Persona != "" {
		s.Persona = strings.TrimSpace(file.Persona)
	}
	if file.Opening != "" {
		s.Opening = strings.TrimSpace(file.Opening)
	}
	if len(file.Questions) > 0 {
		s.Questions = file.Questions
	}
	if file.Floors != nil {
		s.Floors = file.Floors
	}
	if file.RepetitionCap != 0 {
		s.RepetitionCap = file.RepetitionCap
	}
	if file.Tags.User != "" {
		s.Tags.User = file.Tags.User
	}
	if file.Tags.Director != "" {
		s.Tags.Director = file.Tags.Director
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validate script: %w", err)
	}
	return s, nil
}
