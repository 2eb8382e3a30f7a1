package entities

type NetworkConfig struct {
	Name               string   `toml:"name" yaml:"name" json:"name"`
	Host               string   `toml:"host" yaml:"host" json:"host"`
	Port               int      `toml:"port" yaml:"port" json:"port"`
	TLS                bool     `toml:"tls" yaml:"tls" json:"tls"`
	InsecureSkipVerify bool     `toml:"insecure_skip_verify" yaml:"insecure_skip_verify" json:"insecureSkipVerify"`
	Password           string   `toml:"password" yaml:"password" json:"password"`
	NickServAccount    string   `toml:"nickserv_account" yaml:"nickserv_account" json:"nickservAccount"`
	NickServPassword   string   `toml:"nickserv_password" yaml:"nickserv_password" json:"nickservPassword"`
	IdentityProfile    string   `toml:"identity_profile" yaml:"identity_profile" json:"identityProfile"`
	Capabilities       []string `toml:"capabilities" yaml:"capabilities" json:"capabilities"`
}

type ConnectionConfig struct {
	Nick        string   `toml:"nick" yaml:"nick" json:"nick"`
	Username    string   `toml:"username" yaml:"username" json:"username"`
	Realname    string   `toml:"realname" yaml:"realname" json:"realname"`
	QuitMessage string   `toml:"quit_message" yaml:"quit_message" json:"quitMessage"`
	AutoJoin    []string `toml:"auto_join" yaml:"auto_join" json:"autoJoin"`
}
