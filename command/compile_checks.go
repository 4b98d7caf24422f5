package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[AuthorizeMessage] = (*AuthorizeCommand)(nil)
	_ gocmd.Commander[CallbackMessage]  = (*CallbackCommand)(nil)
)
