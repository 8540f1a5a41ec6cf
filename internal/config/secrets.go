package config

import "log/slog"

const redacted = "***"

// secrets lists every credential-bearing field of cfg.
func secrets(cfg *Config) []*string {
	return []*string{
		&cfg.Supabase.DSN,
		&cfg.Supabase.Password,
		&cfg.Redis.Password,
		&cfg.S3.AccessKey,
		&cfg.S3.SecretKey,
		&cfg.Quotes.FinnhubToken,
		&cfg.Server.APIKey,
		&cfg.Notify.TelegramToken,
		&cfg.Notify.DiscordWebhookURL,
	}
}

// RedactedConfig returns a copy of cfg with every non-empty secret replaced
// by "***". Slices are copied too, so the result can be edited freely.
func RedactedConfig(cfg *Config) Config {
	out := *cfg
	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	for _, s := range secrets(&out) {
		if *s != "" {
			*s = redacted
		}
	}
	return out
}

// LogValue summarises the settings an operator checks at startup. Secrets
// only show whether they are set.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("mode", c.Mode),
		slog.String("store", c.Store.Driver),
		slog.Bool("redis", c.Redis.Enabled),
		slog.Bool("s3", c.S3.Enabled),
		slog.Bool("snapshots", c.Snapshot.Enabled),
		slog.Bool("quotes", c.Quotes.FinnhubToken != ""),
		slog.Bool("api_key", c.Server.APIKey != ""),
		slog.Int("port", c.Server.Port),
		slog.Any("notify_events", c.Notify.Events),
	)
}
