package entities

// AuthRecord holds stored NickServ credentials for one network.
type AuthRecord struct {
	NetworkID string `json:"networkId"`
	Account   string `json:"account"`
	Password  string `json:"password"`
}
