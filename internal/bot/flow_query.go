package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "hiky-bot-backend/internal/common/errors"
	querymodels "hiky-bot-backend/internal/features/query/models"
	"hiky-bot-backend/internal/messaging"
)

// templateNamePattern keeps saved-query names safe to embed in callback
// data.
var templateNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

const (
	resultCharLimit = 3500
	timeRounding    = time.Millisecond
)

func (e *Engine) queryMenuStep(ctx context.Context, s *Session, editMessageID int) (*step, error) {
	saved, err := e.queries.List(ctx, s.ActorID)
	if err != nil {
		return nil, err
	}

	rows := [][]messaging.Button{
		messaging.Row(messaging.Btn("▶️ Run a query", s.Action("qrun"))),
	}
	for _, q := range saved {
		rows = append(rows, messaging.Row(
			messaging.Btn("📄 "+q.Name, s.Action("qs", q.Name)),
			messaging.Btn("🗑", s.Action("qd", q.Name)),
		))
	}
	rows = append(rows, messaging.Row(messaging.Btn("« Back", s.Action("admin"))))

	st := goTo(StateQueryMenu)
	text := "Query tool. Read-only SELECT statements only."
	if editMessageID != 0 {
		return st.edit(s, editMessageID, text, rows...), nil
	}
	return st.reply(s, text, rows...), nil
}

func (e *Engine) handleQueryMenu(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	verb, arg := splitAction(action)
	switch verb {
	case "admin":
		return e.adminMenuStep(s, ev.MessageID), nil
	case "qrun":
		s.Query = &QueryDraft{}
		st := goTo(StateQueryExec)
		return st.reply(s, "Send the SELECT statement to run."), nil
	case "qs":
		res, err := e.queries.ExecuteSaved(ctx, s.ActorID, arg)
		if err != nil {
			return nil, err
		}
		st := stay(StateQueryMenu)
		return st.reply(s, formatResult(res),
			messaging.Row(messaging.Btn("« Back", s.Action("query")))), nil
	case "query":
		return e.queryMenuStep(ctx, s, ev.MessageID)
	case "qd":
		if err := e.queries.Delete(ctx, s.ActorID, arg); err != nil {
			return nil, err
		}
		return e.queryMenuStep(ctx, s, ev.MessageID)
	default:
		return e.lostConversation(ctx, s, ev), nil
	}
}

func (e *Engine) handleQueryExec(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	switch action {
	case "query":
		return e.queryMenuStep(ctx, s, ev.MessageID)
	case "qsave":
		if s.Query == nil || s.Query.PendingSQL == "" {
			return nil, apperrors.NewValidationError("query", "run a query first")
		}
		st := goTo(StateQuerySave)
		return st.reply(s, "Name for this query? (letters, digits, - and _)"), nil
	}

	if ev.Kind != messaging.KindText {
		return nil, apperrors.NewValidationError("query", "send the statement as a text message")
	}
	res, err := e.queries.Execute(ctx, s.ActorID, ev.Text)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeRejected) {
			return nil, apperrors.NewValidationError("query", "only read-only SELECT statements are allowed")
		}
		if apperrors.HasCode(err, apperrors.ErrCodeTimeout) {
			return nil, apperrors.NewValidationError("query", "that query took too long and was cancelled")
		}
		return nil, err
	}
	if s.Query == nil {
		s.Query = &QueryDraft{}
	}
	s.Query.PendingSQL = ev.Text

	st := stay(StateQueryExec)
	return st.reply(s, formatResult(res),
		messaging.Row(
			messaging.Btn("💾 Save this query", s.Action("qsave")),
			messaging.Btn("« Back", s.Action("query")),
		)), nil
}

func (e *Engine) handleQuerySave(ctx context.Context, s *Session, ev messaging.Event, _ string) (*step, error) {
	if ev.Kind != messaging.KindText {
		return nil, apperrors.NewValidationError("name", "type the name as a text message")
	}
	name := strings.TrimSpace(ev.Text)
	if !templateNamePattern.MatchString(name) {
		return nil, apperrors.NewValidationError("name", "use up to 32 letters, digits, - or _")
	}
	if err := e.queries.Save(ctx, s.ActorID, name, s.Query.PendingSQL); err != nil {
		return nil, err
	}
	s.Query = nil
	st, err := e.queryMenuStep(ctx, s, 0)
	if err != nil {
		return nil, err
	}
	st.msgs = append([]messaging.Outbound{{ChatID: s.ChatID, Text: "Saved as \"" + name + "\"."}}, st.msgs...)
	return st, nil
}

func formatResult(res *querymodels.Result) string {
	if len(res.Rows) == 0 {
		return fmt.Sprintf("No rows. (%s)", res.Elapsed.Round(timeRounding))
	}

	var b strings.Builder
	b.WriteString(strings.Join(res.Columns, " | "))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("—", len(res.Columns)*4))
	for _, row := range res.Rows {
		b.WriteString("\n")
		cells := make([]string, len(res.Columns))
		for i, col := range res.Columns {
			cells[i] = fmt.Sprintf("%v", row[col])
		}
		b.WriteString(strings.Join(cells, " | "))
		if b.Len() > resultCharLimit {
			b.WriteString("\n…output trimmed")
			break
		}
	}
	fmt.Fprintf(&b, "\n\n%d rows in %s", len(res.Rows), res.Elapsed.Round(timeRounding))
	if res.Truncated {
		b.WriteString(" (more rows exist, result was capped)")
	}
	return b.String()
}
