package entities

type IdentityProfile struct {
	ID                string   `json:"id"`
	Nick              string   `json:"nick"`
	Username          string   `json:"username"`
	Realname          string   `json:"realname"`
	OnConnectCommands []string `json:"onConnectCommands"`
}
