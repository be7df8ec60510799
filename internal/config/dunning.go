package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DunningStepPreset is one step of the default dunning ladder used when
// provisioning a tenant that has no rule yet.
type DunningStepPreset struct {
	Trigger    string `mapstructure:"trigger"`
	OffsetDays int    `mapstructure:"offsetDays"`
	Channel    string `mapstructure:"channel"`
	Template   string `mapstructure:"template"`
}

type DunningConfig struct {
	RuleName string              `mapstructure:"ruleName"`
	Timezone string              `mapstructure:"timezone"`
	Steps    []DunningStepPreset `mapstructure:"steps"`
}

const (
	templateEmailD5 = `Olá, {{nome}}! 😊
Só um lembrete de que a cobrança **{{descricao}}** no valor de **{{valor}}** vence em **{{vencimento}}**.
Boleto: {{link_boleto}}
Se já estiver tudo certo, pode ignorar esta mensagem. Obrigado!`

	templateWhatsappD1 = `Oi, {{nome}}! Lembrete: **{{descricao}}** ({{valor}}) vence amanhã ({{vencimento}}). Boleto: {{link_boleto}}`

	templateSmsD3 = `{{nome}}, a cobrança {{descricao}} ({{valor}}) venceu em {{vencimento}}. Para pagar: {{link_boleto}}`

	templateWhatsappD7 = `Oi, {{nome}}. A cobrança **{{descricao}}** ({{valor}}) segue em aberto desde **{{vencimento}}**. 2ª via: {{link_boleto}}. Se precisar negociar, me avise.`
)

func DefaultDunningConfig() DunningConfig {
	return DunningConfig{
		RuleName: "Régua Padrão",
		Timezone: "America/Sao_Paulo",
		Steps: []DunningStepPreset{
			{Trigger: "BEFORE_DUE", OffsetDays: 5, Channel: "EMAIL", Template: templateEmailD5},
			{Trigger: "BEFORE_DUE", OffsetDays: 1, Channel: "WHATSAPP", Template: templateWhatsappD1},
			{Trigger: "AFTER_DUE", OffsetDays: 3, Channel: "SMS", Template: templateSmsD3},
			{Trigger: "AFTER_DUE", OffsetDays: 7, Channel: "WHATSAPP", Template: templateWhatsappD7},
		},
	}
}

// DunningConfigHolder keeps the current dunning presets and hot-reloads them
// when the config file changes.
type DunningConfigHolder struct {
	current atomic.Value // holds DunningConfig
}

func NewDunningConfigHolder() (*DunningConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("dunning")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/cobranca/config")
	v.AddConfigPath("/etc/cobranca")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COBRANCA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &DunningConfigHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultDunningConfig())
		return holder, nil
	}

	var cfg DunningConfig
	if err := v.UnmarshalKey("dunning", &cfg); err != nil {
		return nil, err
	}
	if err := validateDunningConfig(cfg); err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated DunningConfig
		if err := v.UnmarshalKey("dunning", &updated); err != nil {
			zap.L().Warn("dunning config reload failed", zap.Error(err))
			return
		}
		if err := validateDunningConfig(updated); err != nil {
			zap.L().Warn("invalid dunning config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
	})

	return holder, nil
}

func (h *DunningConfigHolder) Current() DunningConfig {
	cfg, ok := h.current.Load().(DunningConfig)
	if !ok {
		return DefaultDunningConfig()
	}
	return cfg
}

func validateDunningConfig(cfg DunningConfig) error {
	if len(cfg.Steps) == 0 {
		return errors.New("dunning config has no steps")
	}
	for _, step := range cfg.Steps {
		switch step.Trigger {
		case "BEFORE_DUE", "ON_DUE", "AFTER_DUE":
		default:
			return errors.New("invalid dunning trigger: " + step.Trigger)
		}
		if step.OffsetDays < 0 {
			return errors.New("negative offsetDays")
		}
		switch step.Channel {
		case "EMAIL", "WHATSAPP", "SMS":
		default:
			return errors.New("invalid dunning channel: " + step.Channel)
		}
	}
	return nil
}
