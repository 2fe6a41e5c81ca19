package memory

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"quiz-duel-service/internal/domain"
)

//go:embed questions.yaml
var defaultQuestionsYAML []byte

// StaticQuestionLoader serves a fixed question set (useful for tests/demos and the built-in bank).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	return l.questions, nil
}

type questionFile struct {
	Questions []domain.Question `yaml:"questions"`
}

// ParseQuestions decodes and validates a YAML question bank.
func ParseQuestions(data []byte) ([]domain.Question, error) {
	var file questionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	for _, q := range file.Questions {
		if err := q.Validate(); err != nil {
			return nil, err
		}
	}
	return file.Questions, nil
}

// DefaultQuestions returns the built-in bank.
func DefaultQuestions() ([]domain.Question, error) {
	return ParseQuestions(defaultQuestionsYAML)
}

// LoadQuestionFile reads a YAML bank from path, or the built-in bank when path is empty.
func LoadQuestionFile(path string) ([]domain.Question, error) {
	if path == "" {
		return DefaultQuestions()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseQuestions(data)
}
