package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"trivia-race-service/internal/infra/memory"
)

// QuestionRow is the bun model of the questions table.
type QuestionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID       int      `bun:"id,pk,autoincrement"`
	Position int      `bun:"position,notnull"`
	Text     string   `bun:"text,notnull"`
	Options  []string `bun:"options,type:jsonb,notnull"`
	Correct  string   `bun:"correct,notnull"`
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			count, err := db.NewSelect().Model((*QuestionRow)(nil)).Count(ctx)
			if err != nil || count > 0 {
				return err
			}
			defaults := memory.DefaultQuestions()
			rows := make([]QuestionRow, len(defaults))
			for i, q := range defaults {
				rows[i] = QuestionRow{Position: i + 1, Text: q.Text, Options: q.Options, Correct: q.Correct}
			}
			_, err = db.NewInsert().Model(&rows).Exec(ctx)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DELETE FROM questions`)
			return err
		},
	)
}
