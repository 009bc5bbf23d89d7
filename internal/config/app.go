package config

type AppConfig struct {
	Server ServerConfig
	Match  MatchConfig
	Notify NotifyConfig
	Log    LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	matchCfg, err := LoadMatch()
	if err != nil {
		return AppConfig{}, err
	}
	notifyCfg, err := LoadNotify()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server: serverCfg,
		Match:  matchCfg,
		Notify: notifyCfg,
		Log:    logCfg,
	}, nil
}
