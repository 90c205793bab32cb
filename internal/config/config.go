// Package config handles configuration loading, saving, and schema definition.
package config

// Config is the top-level chatgate configuration.
// Uses json tags in camelCase to match the JSON config file format;
// the same names apply to YAML config files.
type Config struct {
	Dispatch DispatchConfig `json:"dispatch" yaml:"dispatch"`
	Chat     ChatConfig     `json:"chat" yaml:"chat"`
	Bot      BotConfig      `json:"bot" yaml:"bot"`
	Session  SessionConfig  `json:"session" yaml:"session"`
	Channel  ChannelConfig  `json:"channel" yaml:"channel"`
	Debug    bool           `json:"debug,omitempty" yaml:"debug,omitempty"`
}

// DispatchConfig holds the message scheduling settings.
type DispatchConfig struct {
	ConcurrencyInSession int    `json:"concurrencyInSession" yaml:"concurrencyInSession"` // max in-flight per session
	HandlerPoolSize      int    `json:"handlerPoolSize" yaml:"handlerPoolSize"`           // shared worker pool size
	CommandPrefix        string `json:"commandPrefix" yaml:"commandPrefix"`               // control command prefix
	PollIntervalMs       int    `json:"pollIntervalMs" yaml:"pollIntervalMs"`             // scheduling loop cycle
}

// ChatConfig holds trigger and reply presentation rules.
type ChatConfig struct {
	SingleChatPrefix          []string `json:"singleChatPrefix" yaml:"singleChatPrefix"`
	SingleChatReplyPrefix     string   `json:"singleChatReplyPrefix,omitempty" yaml:"singleChatReplyPrefix,omitempty"`
	SingleChatReplySuffix     string   `json:"singleChatReplySuffix,omitempty" yaml:"singleChatReplySuffix,omitempty"`
	GroupChatPrefix           []string `json:"groupChatPrefix" yaml:"groupChatPrefix"`
	GroupChatKeyword          []string `json:"groupChatKeyword,omitempty" yaml:"groupChatKeyword,omitempty"`
	GroupChatReplyPrefix      string   `json:"groupChatReplyPrefix,omitempty" yaml:"groupChatReplyPrefix,omitempty"`
	GroupChatReplySuffix      string   `json:"groupChatReplySuffix,omitempty" yaml:"groupChatReplySuffix,omitempty"`
	GroupNameWhiteList        []string `json:"groupNameWhiteList" yaml:"groupNameWhiteList"`
	GroupNameKeywordWhiteList []string `json:"groupNameKeywordWhiteList,omitempty" yaml:"groupNameKeywordWhiteList,omitempty"`
	GroupChatInOneSession     []string `json:"groupChatInOneSession,omitempty" yaml:"groupChatInOneSession,omitempty"`
	GroupAtOff                bool     `json:"groupAtOff,omitempty" yaml:"groupAtOff,omitempty"`
	NickNameBlackList         []string `json:"nickNameBlackList,omitempty" yaml:"nickNameBlackList,omitempty"`
	ImageCreatePrefix         []string `json:"imageCreatePrefix,omitempty" yaml:"imageCreatePrefix,omitempty"`
	TriggerBySelf             bool     `json:"triggerBySelf" yaml:"triggerBySelf"`
	AlwaysReplyVoice          bool     `json:"alwaysReplyVoice,omitempty" yaml:"alwaysReplyVoice,omitempty"`
	VoiceReplyVoice           bool     `json:"voiceReplyVoice,omitempty" yaml:"voiceReplyVoice,omitempty"`
}

// BotConfig selects and configures the bot backend.
type BotConfig struct {
	Type    string `json:"type" yaml:"type"` // "openai" or "echo"
	APIKey  string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	APIBase string `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`
	Prompt  string `json:"prompt,omitempty" yaml:"prompt,omitempty"` // system prompt
}

// SessionConfig holds conversation memory settings.
type SessionConfig struct {
	ExpiresSeconds int          `json:"expiresSeconds" yaml:"expiresSeconds"` // idle expiry
	MaxTurns       int          `json:"maxTurns" yaml:"maxTurns"`             // history turns kept
	Redis          *RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// RedisConfig holds Redis connection settings for the session store.
type RedisConfig struct {
	URL      string `json:"url" yaml:"url"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
}

// ChannelConfig holds per-channel settings.
type ChannelConfig struct {
	Terminal *TerminalConfig `json:"terminal,omitempty" yaml:"terminal,omitempty"`
	Web      *WebConfig      `json:"web,omitempty" yaml:"web,omitempty"`
}

// TerminalConfig holds terminal channel settings.
type TerminalConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// WebConfig holds the websocket web channel settings.
type WebConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Port    int  `json:"port,omitempty" yaml:"port,omitempty"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() Config {
	return Config{
		Dispatch: DispatchConfig{
			ConcurrencyInSession: 4,
			HandlerPoolSize:      8,
			CommandPrefix:        "#",
			PollIntervalMs:       200,
		},
		Chat: ChatConfig{
			SingleChatPrefix:   []string{""},
			GroupChatPrefix:    []string{"@bot"},
			GroupNameWhiteList: []string{"ALL_GROUP"},
			TriggerBySelf:      true,
		},
		Bot: BotConfig{
			Type:  "openai",
			Model: "gpt-4o-mini",
		},
		Session: SessionConfig{
			ExpiresSeconds: 3600,
			MaxTurns:       20,
		},
		Channel: ChannelConfig{
			Terminal: &TerminalConfig{Enabled: true},
		},
	}
}
