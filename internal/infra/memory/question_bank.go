package memory

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"trivia-race-service/internal/domain"
)

// QuestionLoader fetches the question bank from a backing store (file, Postgres, ...).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionBank caches the loaded questions with a TTL to avoid repeated loads.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionBank(loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) Questions(ctx context.Context) ([]domain.Question, error) {
	if qs, ok := b.cached(b.clock()); ok {
		return qs, nil
	}

	result, err, _ := b.sf.Do("questions", func() (interface{}, error) {
		now := b.clock()
		if qs, ok := b.cached(now); ok {
			return qs, nil
		}
		qs, err := b.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.questions = qs
		b.expiresAt = now.Add(b.ttlWithJitter())
		b.mu.Unlock()
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) cached(now time.Time) ([]domain.Question, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.questions != nil && b.expiresAt.After(now) {
		return b.questions, true
	}
	return nil, false
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves a fixed slice (built-in defaults, tests).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	if len(l.questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return l.questions, nil
}

// FileQuestionLoader reads questions from a YAML (or JSON) file on every load.
type FileQuestionLoader struct {
	path string
}

func NewFileQuestionLoader(path string) *FileQuestionLoader {
	return &FileQuestionLoader{path: path}
}

type questionFile struct {
	Questions []domain.Question `yaml:"questions"`
}

func (l *FileQuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	var file questionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	if len(file.Questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	for i := range file.Questions {
		file.Questions[i].Correct = domain.NormalizeOption(file.Questions[i].Correct)
	}
	return file.Questions, nil
}

// DefaultQuestions is the built-in bank used when no other source is configured.
func DefaultQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:      1,
			Text:    "¿Qué producto de Control de Miopía tiene el estudio más largo realizado en niños?",
			Options: []string{"A) Lente Oftálmica", "B) MiSight 1 day", "C) Lentilla Multifocal", "D) Orto-K"},
			Correct: "B",
		},
		{
			ID:      2,
			Text:    "¿Cuál de estos productos ha demostrado su eficacia en frenar la miopía en niños de 6 años?",
			Options: []string{"A) MiSight 1 day", "B) MiSight Spectacle", "C) Orto-K", "D) Todas las anteriores"},
			Correct: "B",
		},
	}
}
