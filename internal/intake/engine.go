// Package intake implements the conversational state machine that walks a
// user through the intake schema, lets them correct answers, and hands the
// finished record to the submission pipeline.
package intake

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/user/freightbot/internal/attachment"
	"github.com/user/freightbot/internal/gateway"
	"github.com/user/freightbot/internal/render"
	"github.com/user/freightbot/internal/schema"
	"github.com/user/freightbot/internal/state"
	"github.com/user/freightbot/internal/submission"
	"github.com/user/freightbot/internal/types"
)

// PhotoResolver fetches and stores a photo sent during the photo step.
type PhotoResolver interface {
	Resolve(ctx context.Context, userID types.UserID, ref *types.PhotoRef) attachment.Result
}

// Submitter receives finished submissions.
type Submitter interface {
	Submit(ctx context.Context, sub *types.Submission) submission.Report
}

// Engine drives the intake conversation. Handle is not safe for concurrent
// calls with the same user id; the gateway queue serializes them.
type Engine struct {
	schema    *schema.Schema
	sessions  *state.SessionStore
	render    *render.Renderer
	photos    PhotoResolver
	submitter Submitter
	operators []string
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithOperators sets the targets listed by the admin command.
func WithOperators(targets []string) Option {
	return func(e *Engine) { e.operators = append([]string(nil), targets...) }
}

// WithClock overrides the submission timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(s *schema.Schema, sessions *state.SessionStore, r *render.Renderer, photos PhotoResolver, submitter Submitter, opts ...Option) *Engine {
	e := &Engine{
		schema:    s,
		sessions:  sessions,
		render:    r,
		photos:    photos,
		submitter: submitter,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessRun is the gateway queue processor.
func (e *Engine) ProcessRun(run *gateway.Run) error {
	msg := e.Handle(run.Context(), run.Event)
	if msg != nil && run.OnComplete != nil {
		run.OnComplete(msg)
	}
	return nil
}

// Handle applies one inbound event and returns the reply, or nil when the
// event is ignored.
func (e *Engine) Handle(ctx context.Context, ev *types.InboundEvent) *types.OutboundMessage {
	switch ev.Command {
	case types.CmdStart, types.CmdHome:
		return e.home(ev)
	case types.CmdCancel:
		e.sessions.Delete(ev.UserID)
		slog.Debug("session cancelled", "user_id", string(ev.UserID))
		return e.reply(ev, e.render.Cancelled(), e.mainMenu())
	case types.CmdNewRequest:
		return e.startRequest(ev)
	case types.CmdContactOperator:
		return e.startHelp(ev)
	case types.CmdAdmin:
		return e.reply(ev, e.render.Admin(ev.UserID, e.operators), nil)
	}

	sess, ok := e.sessions.Begin(ev.UserID)
	if !ok {
		if ev.Kind == types.EventPhoto {
			return nil
		}
		return e.welcome(ev)
	}
	sess.ChatID = ev.ChatID
	if ev.Username != "" {
		sess.Username = ev.Username
	}
	if ev.DisplayName != "" {
		sess.DisplayName = ev.DisplayName
	}

	switch sess.Step.Kind {
	case state.StepCollecting, state.StepCorrecting:
		return e.capture(ctx, sess, ev)
	case state.StepConfirming:
		return e.confirming(ctx, sess, ev)
	case state.StepCorrectingMenu:
		return e.correctionMenu(sess, ev)
	case state.StepAwaitingHelp:
		return e.awaitingHelp(ctx, sess, ev)
	default:
		if ev.Kind == types.EventPhoto {
			return nil
		}
		return e.welcome(ev)
	}
}

func (e *Engine) reply(ev *types.InboundEvent, text string, replies []string) *types.OutboundMessage {
	return &types.OutboundMessage{
		UserID:  ev.UserID,
		ChatID:  ev.ChatID,
		Text:    text,
		Replies: replies,
	}
}

func (e *Engine) welcome(ev *types.InboundEvent) *types.OutboundMessage {
	return e.reply(ev, e.render.Welcome(), e.mainMenu())
}

func (e *Engine) home(ev *types.InboundEvent) *types.OutboundMessage {
	e.sessions.Delete(ev.UserID)
	return e.welcome(ev)
}

// prompt issues the question for field key.
func (e *Engine) prompt(ev *types.InboundEvent, key string) *types.OutboundMessage {
	f, _ := e.schema.Field(key)
	msg := e.reply(ev, f.Prompt, e.fieldKeyboard(f))
	if f.Kind == schema.KindPhone {
		msg.RequestContact = e.schema.Labels.SharePhone
	}
	return msg
}

func (e *Engine) preview(ev *types.InboundEvent, sess *state.Session) *types.OutboundMessage {
	return e.reply(ev, e.render.Preview(sess.Record), e.confirmKeyboard())
}

func (e *Engine) newSession(ev *types.InboundEvent) *state.Session {
	sess := e.sessions.Create(ev.UserID)
	sess.ChatID = ev.ChatID
	sess.Username = ev.Username
	sess.DisplayName = ev.DisplayName
	return sess
}

func (e *Engine) startRequest(ev *types.InboundEvent) *types.OutboundMessage {
	sess := e.newSession(ev)
	sess.Step = state.Collecting(e.schema.First())
	e.sessions.Save(sess)
	slog.Debug("intake started", "user_id", string(ev.UserID))
	return e.prompt(ev, e.schema.First())
}

func (e *Engine) startHelp(ev *types.InboundEvent) *types.OutboundMessage {
	sess := e.newSession(ev)
	sess.Step = state.AwaitingHelp()
	e.sessions.Save(sess)
	return e.reply(ev, e.render.HelpPrompt(), e.helpKeyboard())
}

// plainText returns the user's free text, or false when the event is not
// free text.
func plainText(ev *types.InboundEvent) (string, bool) {
	if ev.Kind != types.EventText || ev.Command != types.CmdNone {
		return "", false
	}
	text := strings.TrimSpace(ev.Text)
	return text, text != ""
}

func (e *Engine) capture(ctx context.Context, sess *state.Session, ev *types.InboundEvent) *types.OutboundMessage {
	key := sess.Step.Field
	correcting := sess.Step.Kind == state.StepCorrecting

	switch ev.Command {
	case types.CmdBack:
		if correcting {
			return e.toConfirming(sess, ev)
		}
		prev, ok := e.schema.Prev(key)
		if !ok {
			return e.home(ev)
		}
		sess.Step = state.Collecting(prev)
		e.sessions.Save(sess)
		return e.prompt(ev, prev)
	case types.CmdBackToConfirm:
		if correcting {
			return e.toConfirming(sess, ev)
		}
	}

	f, _ := e.schema.Field(key)
	value, ok := e.fieldValue(ctx, sess, f, ev)
	if !ok {
		if ev.Kind == types.EventPhoto {
			return nil
		}
		return e.prompt(ev, key)
	}
	sess.Record.Set(key, value)

	if correcting {
		return e.toConfirming(sess, ev)
	}
	next, ok := e.schema.Next(key)
	if !ok {
		return e.toConfirming(sess, ev)
	}
	sess.Step = state.Collecting(next)
	e.sessions.Save(sess)
	return e.prompt(ev, next)
}

// fieldValue extracts the value for f from ev. It returns false when the
// event is not an acceptable answer for f.
func (e *Engine) fieldValue(ctx context.Context, sess *state.Session, f schema.Field, ev *types.InboundEvent) (string, bool) {
	switch f.Kind {
	case schema.KindPhotoOptional:
		switch {
		case ev.Kind == types.EventPhoto:
			res := attachment.Result{Status: attachment.StatusDownloadFailed}
			if e.photos != nil {
				res = e.photos.Resolve(ctx, ev.UserID, ev.Photo)
			}
			sess.PhotoRef, sess.PhotoPath = "", ""
			if res.Status == attachment.StatusStored {
				sess.PhotoRef, sess.PhotoPath = res.Reference, res.LocalPath
			}
			return res.Value(), true
		case ev.Command == types.CmdSkipPhoto:
		case ev.Command != types.CmdNone:
			return "", false
		}
		sess.PhotoRef, sess.PhotoPath = "", ""
		return schema.NotProvided, true

	case schema.KindPhone:
		if ev.Kind == types.EventContact && ev.Phone != "" {
			return ev.Phone, true
		}
		return plainText(ev)

	default:
		return plainText(ev)
	}
}

func (e *Engine) toConfirming(sess *state.Session, ev *types.InboundEvent) *types.OutboundMessage {
	sess.Step = state.Confirming()
	e.sessions.Save(sess)
	return e.preview(ev, sess)
}

func (e *Engine) confirming(ctx context.Context, sess *state.Session, ev *types.InboundEvent) *types.OutboundMessage {
	switch ev.Command {
	case types.CmdConfirm:
		return e.submit(ctx, sess, ev)
	case types.CmdEdit:
		sess.Step = state.CorrectingMenu()
		e.sessions.Save(sess)
		return e.reply(ev, e.render.CorrectionMenu(), e.correctionKeyboard())
	case types.CmdBack:
		last := e.schema.Last()
		sess.Step = state.Collecting(last)
		e.sessions.Save(sess)
		return e.prompt(ev, last)
	}
	if ev.Kind == types.EventPhoto {
		return nil
	}
	return e.preview(ev, sess)
}

func (e *Engine) correctionMenu(sess *state.Session, ev *types.InboundEvent) *types.OutboundMessage {
	switch ev.Command {
	case types.CmdBack:
		return e.home(ev)
	case types.CmdBackToConfirm:
		return e.toConfirming(sess, ev)
	}
	if ev.Kind == types.EventPhoto {
		return nil
	}
	if ev.Kind == types.EventText && ev.Command == types.CmdNone {
		if f, ok := e.schema.ByLabel(ev.Text); ok {
			sess.Step = state.Correcting(f.Key)
			e.sessions.Save(sess)
			return e.prompt(ev, f.Key)
		}
	}
	return e.reply(ev, e.render.CorrectionMenu(), e.correctionKeyboard())
}

func (e *Engine) submit(ctx context.Context, sess *state.Session, ev *types.InboundEvent) *types.OutboundMessage {
	rec := sess.Record.Clone()
	rec.Complete(e.schema)

	sub := &types.Submission{
		ID:          types.NewSubmissionID(),
		Kind:        types.KindRequest,
		SubmittedAt: e.now(),
		UserID:      sess.UserID,
		Username:    sess.Username,
		DisplayName: sess.DisplayName,
		Values:      rec.Values(e.schema),
		PhotoRef:    sess.PhotoRef,
		PhotoPath:   sess.PhotoPath,
	}
	e.sessions.Delete(sess.UserID)

	rep := e.submitter.Submit(ctx, sub)
	slog.Info("request submitted",
		"user_id", string(sub.UserID),
		"submission_id", string(sub.ID),
		"persisted", rep.Persisted,
		"fell_back", rep.FellBack,
		"delivered", rep.Successes,
		"targets", rep.Attempts)

	return e.reply(ev, e.render.Acknowledgment(), e.mainMenu())
}

func (e *Engine) awaitingHelp(ctx context.Context, sess *state.Session, ev *types.InboundEvent) *types.OutboundMessage {
	if ev.Command == types.CmdBack {
		return e.home(ev)
	}
	if ev.Kind == types.EventPhoto {
		return nil
	}
	text, ok := plainText(ev)
	if !ok {
		return e.reply(ev, e.render.HelpPrompt(), e.helpKeyboard())
	}

	sub := &types.Submission{
		ID:          types.NewSubmissionID(),
		Kind:        types.KindHelp,
		SubmittedAt: e.now(),
		UserID:      sess.UserID,
		Username:    sess.Username,
		DisplayName: displayName(sess),
		Values:      e.helpValues(displayName(sess), text),
		Message:     text,
	}
	e.sessions.Delete(sess.UserID)

	rep := e.submitter.Submit(ctx, sub)
	slog.Info("help request submitted",
		"user_id", string(sub.UserID),
		"submission_id", string(sub.ID),
		"delivered", rep.Successes,
		"targets", rep.Attempts)

	return e.reply(ev, e.render.HelpThanks(), e.mainMenu())
}

// helpValues lays out a help request as a row: the name column holds the
// sender, the help column holds the message, everything else is empty.
func (e *Engine) helpValues(name, text string) []string {
	rec := schema.Record{}
	if e.schema.NameField != "" {
		rec.Set(e.schema.NameField, name)
	}
	if e.schema.HelpField != "" {
		rec.Set(e.schema.HelpField, text)
	}
	return rec.Values(e.schema)
}

func displayName(sess *state.Session) string {
	switch {
	case sess.DisplayName != "":
		return sess.DisplayName
	case sess.Username != "":
		return sess.Username
	default:
		return schema.UnspecifiedUsername
	}
}
