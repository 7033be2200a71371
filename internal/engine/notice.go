package engine

import (
	"fmt"

	panelerrors "github.com/tessro/spotpanel/internal/errors"
)

// NoticeLevel is the severity of a notice.
type NoticeLevel int

const (
	NoticeSuccess NoticeLevel = iota
	NoticeFailure
)

// Notice is a short user-facing message about a finished command.
type Notice struct {
	Level   NoticeLevel
	Command Command
	Text    string
	Err     error
}

func successNotice(cmd Command) Notice {
	return Notice{
		Level:   NoticeSuccess,
		Command: cmd,
		Text:    commandTexts[cmd].done,
	}
}

func failureNotice(cmd Command, err error) Notice {
	verb := commandTexts[cmd].verb
	text := fmt.Sprintf("Failed to %s: %v", verb, err)
	if panelerrors.Kind(err) == panelerrors.LogicalFailure {
		text = fmt.Sprintf("Failed to %s", verb)
	}
	return Notice{
		Level:   NoticeFailure,
		Command: cmd,
		Text:    text,
		Err:     err,
	}
}
