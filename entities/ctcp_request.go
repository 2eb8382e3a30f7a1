package entities

type CTCPRequest struct {
	ConnectionID  string
	CommandName   string
	CommandParams string
	Source        *IrcMessageSource
	Target        string
	Reply         func(response string)
}
