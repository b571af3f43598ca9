package records

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ImportPayload is the shape of a legacy export: flat journal entries plus
// habits with their entries nested. Field synonyms from old exports are
// accepted because the payload flows through the normal write path.
type ImportPayload struct {
	Entries []EntryInput  `json:"entries"`
	Habits  []ImportHabit `json:"habits"`
}

type ImportHabit struct {
	HabitInput
	Entries []HabitEntryInput `json:"entries"`
}

// ImportReport counts what was created and lists the rows that were
// skipped, with the reason each failed validation.
type ImportReport struct {
	Entries      int      `json:"entries"`
	Habits       int      `json:"habits"`
	HabitEntries int      `json:"habitEntries"`
	Skipped      []string `json:"skipped,omitempty"`
}

// Importer replays an export through the entry and habit services so
// imported records get the same validation, normalization and events as
// records created live.
type Importer struct {
	entries *EntryService
	habits  *HabitService
	log     *zap.Logger
}

func NewImporter(entries *EntryService, habits *HabitService, log *zap.Logger) *Importer {
	return &Importer{entries: entries, habits: habits, log: log}
}

// Import creates every importable row for the user. Rows that fail
// validation are skipped and reported; a store failure aborts the import
// with the rows created so far kept.
func (im *Importer) Import(ctx context.Context, ownerID string, payload ImportPayload) (ImportReport, error) {
	report := ImportReport{}

	for i, in := range payload.Entries {
		if _, err := im.entries.Create(ctx, ownerID, in); err != nil {
			if skippable(err) {
				report.Skipped = append(report.Skipped, fmt.Sprintf("entry %d: %v", i, err))
				continue
			}
			return report, err
		}
		report.Entries++
	}

	for i, h := range payload.Habits {
		habit, err := im.habits.Create(ctx, ownerID, h.HabitInput)
		if err != nil {
			if skippable(err) {
				report.Skipped = append(report.Skipped, fmt.Sprintf("habit %d: %v", i, err))
				continue
			}
			return report, err
		}
		report.Habits++

		for j, in := range h.Entries {
			if _, err := im.habits.CreateEntry(ctx, ownerID, habit.ID, in); err != nil {
				if skippable(err) {
					report.Skipped = append(report.Skipped, fmt.Sprintf("habit %d entry %d: %v", i, j, err))
					continue
				}
				return report, err
			}
			report.HabitEntries++
		}
	}

	im.log.Info("import finished",
		zap.String("user", ownerID),
		zap.Int("entries", report.Entries),
		zap.Int("habits", report.Habits),
		zap.Int("habitEntries", report.HabitEntries),
		zap.Int("skipped", len(report.Skipped)))
	return report, nil
}

func skippable(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
