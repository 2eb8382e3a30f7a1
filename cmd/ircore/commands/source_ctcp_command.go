// Package commands holds the extra CTCP commands the CLI answers.
package commands

import (
	"github.com/ynotnauk/go-irc/entities"
)

// SourceCTCPCommand answers CTCP SOURCE with where the client can be found.
type SourceCTCPCommand struct {
	URL string
}

func (c *SourceCTCPCommand) Execute(request *entities.CTCPRequest) {
	if c.URL == "" || request.Reply == nil {
		return
	}
	request.Reply("SOURCE " + c.URL)
}
