package intake

import (
	"github.com/user/freightbot/internal/schema"
)

func (e *Engine) mainMenu() []string {
	l := e.schema.Labels
	return []string{l.NewRequest, l.ContactOperator}
}

func (e *Engine) navigation() []string {
	l := e.schema.Labels
	return []string{l.Back, l.ContactOperator, l.Home, l.Cancel}
}

func (e *Engine) fieldKeyboard(f schema.Field) []string {
	var replies []string
	switch f.Kind {
	case schema.KindEnumChoice:
		replies = append(replies, f.Choices...)
	case schema.KindPhotoOptional:
		replies = append(replies, e.schema.Labels.SkipPhoto)
	}
	return append(replies, e.navigation()...)
}

func (e *Engine) confirmKeyboard() []string {
	l := e.schema.Labels
	return []string{l.Confirm, l.Edit, l.ContactOperator, l.Home, l.Cancel}
}

func (e *Engine) correctionKeyboard() []string {
	return append(e.schema.FieldLabels(), e.schema.Labels.BackToConfirm)
}

func (e *Engine) helpKeyboard() []string {
	l := e.schema.Labels
	return []string{l.Cancel, l.Home}
}
