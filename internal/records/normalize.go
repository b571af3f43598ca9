package records

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/docstore"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// codec applies at-rest sealing to free-text fields. A nil Encryptor makes
// it a pass-through.
type codec struct {
	enc Encryptor
	log *zap.Logger
}

func (c codec) seal(s string) (string, error) {
	if c.enc == nil || s == "" {
		return s, nil
	}
	out, err := c.enc.Seal(s)
	if err != nil {
		return "", &TransportError{Op: "seal field", Err: err}
	}
	return out, nil
}

func (c codec) open(s string) string {
	if c.enc == nil || s == "" {
		return s
	}
	out, err := c.enc.Open(s)
	if err != nil {
		c.log.Warn("could not open sealed field", zap.Error(err))
		return ""
	}
	return out
}

// entryFromDoc normalizes a stored document onto the canonical entry shape.
// Legacy documents may carry name instead of title and description instead
// of content; the canonical key wins when both are present.
func (c codec) entryFromDoc(d docstore.Document) Entry {
	title := docstore.String(d, "title")
	if title == "" {
		title = docstore.String(d, "name")
	}
	if title == "" {
		title = UntitledFallback
	}
	content := docstore.String(d, "content")
	if content == "" {
		content = docstore.String(d, "description")
	}

	e := Entry{
		ID:        docstore.String(d, "id"),
		UserID:    docstore.String(d, "userId"),
		Title:     title,
		Content:   c.open(content),
		MediaURLs: docstore.StringSlice(d, "mediaUrls"),
		CreatedAt: docstore.Time(d, "createdAt"),
		UpdatedAt: docstore.Time(d, "updatedAt"),
	}
	if date := docstore.String(d, "date"); date != "" {
		e.Date = &date
	}
	return e
}

// habitFromDoc normalizes a stored document onto the canonical habit shape.
// The synonym direction flips for habits: name is canonical, title legacy.
func habitFromDoc(d docstore.Document) Habit {
	name := docstore.String(d, "name")
	if name == "" {
		name = docstore.String(d, "title")
	}
	description := docstore.String(d, "description")
	if description == "" {
		description = docstore.String(d, "content")
	}
	color := docstore.String(d, "color")
	if color == "" {
		color = DefaultHabitColor
	}
	return Habit{
		ID:          docstore.String(d, "id"),
		UserID:      docstore.String(d, "userId"),
		Name:        name,
		Description: description,
		TargetHours: docstore.Number(d, "targetHours"),
		Color:       color,
		CreatedAt:   docstore.Time(d, "createdAt"),
		UpdatedAt:   docstore.Time(d, "updatedAt"),
	}
}

func (c codec) habitEntryFromDoc(d docstore.Document) HabitEntry {
	return HabitEntry{
		ID:        docstore.String(d, "id"),
		UserID:    docstore.String(d, "userId"),
		HabitID:   docstore.String(d, "habitId"),
		Date:      docstore.String(d, "date"),
		Hours:     docstore.Number(d, "hours"),
		Notes:     c.open(docstore.String(d, "notes")),
		CreatedAt: docstore.Time(d, "createdAt"),
		UpdatedAt: docstore.Time(d, "updatedAt"),
	}
}

// firstString resolves a canonical/legacy pointer pair, canonical first.
func firstString(ptrs ...*string) *string {
	for _, p := range ptrs {
		if p != nil {
			return p
		}
	}
	return nil
}

func validDate(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if _, err := time.Parse(DateLayout, value); err != nil {
		return "", &ValidationError{Field: field, Reason: "must be a YYYY-MM-DD date"}
	}
	return value, nil
}

func validRange(r DateRange) error {
	if r.From != "" {
		if _, err := validDate("start_date", r.From); err != nil {
			return err
		}
	}
	if r.To != "" {
		if _, err := validDate("end_date", r.To); err != nil {
			return err
		}
	}
	if r.From != "" && r.To != "" && r.From > r.To {
		return &ValidationError{Field: "start_date", Reason: "must not be after end_date"}
	}
	return nil
}

func validColor(value string) (string, error) {
	value = strings.TrimSpace(value)
	if !colorPattern.MatchString(value) {
		return "", &ValidationError{Field: "color", Reason: "must be a hex color like #RRGGBB"}
	}
	return value, nil
}

// ownedDoc loads a document and checks it belongs to the caller. A document
// owned by someone else reads as missing.
func ownedDoc(ctx context.Context, store docstore.Store, collection, kind, ownerID, id string) (docstore.Document, error) {
	doc, err := store.Get(ctx, collection, id)
	if err != nil {
		return nil, storeErr("load "+kind, kind, id, err)
	}
	if docstore.String(doc, "userId") != ownerID {
		return nil, &NotFoundError{Kind: kind, ID: id}
	}
	return doc, nil
}
