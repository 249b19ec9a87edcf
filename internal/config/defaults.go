package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:               "info",
			LogFormat:              "text",
			MaxConcurrentMessages:  5,
			MaxConcurrentCommands:  4,
			CommandTimeoutSeconds:  30,
			TypingKeepaliveSeconds: 9,
		},
		Market: MarketConfig{
			BaseURL:        "https://query2.finance.yahoo.com",
			TimeoutSeconds: 15,
			SearchLimit:    5,
			ReturnPeriods:  []int{1, 3, 12},
			HistoryDays:    400,
		},
		Chart: ChartConfig{
			Renderer:             "raster",
			ChromeTimeoutSeconds: 20,
			Width:                1000,
			Height:               500,
			OutDir:               "~/.stockbot/charts",
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Enabled: true,
			},
			Telegram: TelegramConfig{
				Enabled: false,
			},
			CLI: CLIConfig{
				Enabled: false,
			},
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:9090",
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
		API: APIConfig{
			Enabled: false,
		},
	}
}
