package types

// Command is a navigation command decoded from an exact button label.
type Command int

const (
	CmdNone Command = iota
	CmdStart
	CmdHome
	CmdNewRequest
	CmdCancel
	CmdBack
	CmdConfirm
	CmdEdit
	CmdBackToConfirm
	CmdContactOperator
	CmdSkipPhoto
	CmdAdmin
)

func (c Command) String() string {
	switch c {
	case CmdStart:
		return "start"
	case CmdHome:
		return "home"
	case CmdNewRequest:
		return "new_request"
	case CmdCancel:
		return "cancel"
	case CmdBack:
		return "back"
	case CmdConfirm:
		return "confirm"
	case CmdEdit:
		return "edit"
	case CmdBackToConfirm:
		return "back_to_confirm"
	case CmdContactOperator:
		return "contact_operator"
	case CmdSkipPhoto:
		return "skip_photo"
	case CmdAdmin:
		return "admin"
	default:
		return "none"
	}
}

// Labels holds the button captions recognised as navigation commands.
type Labels struct {
	NewRequest      string `yaml:"new_request" json:"new_request"`
	Cancel          string `yaml:"cancel" json:"cancel"`
	Back            string `yaml:"back" json:"back"`
	Home            string `yaml:"home" json:"home"`
	Confirm         string `yaml:"confirm" json:"confirm"`
	Edit            string `yaml:"edit" json:"edit"`
	BackToConfirm   string `yaml:"back_to_confirm" json:"back_to_confirm"`
	ContactOperator string `yaml:"contact_operator" json:"contact_operator"`
	SkipPhoto       string `yaml:"skip_photo" json:"skip_photo"`
	SharePhone      string `yaml:"share_phone" json:"share_phone"`
}

func DefaultLabels() Labels {
	return Labels{
		NewRequest:      "📦 New request",
		Cancel:          "❌ Cancel",
		Back:            "⬅️ Back",
		Home:            "🏠 Home",
		Confirm:         "✅ Confirm",
		Edit:            "✏️ Edit",
		BackToConfirm:   "⬅️ Back to confirmation",
		ContactOperator: "👨‍💼 Contact a manager",
		SkipPhoto:       "📷 Skip photo",
		SharePhone:      "📞 Share phone number",
	}
}

// Decode maps text to a command by exact label match. Slash commands
// are handled by the transport before calling Decode.
func (l Labels) Decode(text string) Command {
	if text == "" {
		return CmdNone
	}
	switch text {
	case l.NewRequest:
		return CmdNewRequest
	case l.Cancel:
		return CmdCancel
	case l.Back:
		return CmdBack
	case l.Home:
		return CmdHome
	case l.Confirm:
		return CmdConfirm
	case l.Edit:
		return CmdEdit
	case l.BackToConfirm:
		return CmdBackToConfirm
	case l.ContactOperator:
		return CmdContactOperator
	case l.SkipPhoto:
		return CmdSkipPhoto
	}
	return CmdNone
}

// Merge fills empty labels in l from defaults.
func (l Labels) Merge(defaults Labels) Labels {
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return Labels{
		NewRequest:      pick(l.NewRequest, defaults.NewRequest),
		Cancel:          pick(l.Cancel, defaults.Cancel),
		Back:            pick(l.Back, defaults.Back),
		Home:            pick(l.Home, defaults.Home),
		Confirm:         pick(l.Confirm, defaults.Confirm),
		Edit:            pick(l.Edit, defaults.Edit),
		BackToConfirm:   pick(l.BackToConfirm, defaults.BackToConfirm),
		ContactOperator: pick(l.ContactOperator, defaults.ContactOperator),
		SkipPhoto:       pick(l.SkipPhoto, defaults.SkipPhoto),
		SharePhone:      pick(l.SharePhone, defaults.SharePhone),
	}
}
