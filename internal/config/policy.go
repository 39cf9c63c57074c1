package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// InvitePolicy carries the operator-tunable knobs of the invitation flow.
type InvitePolicy struct {
	TokenTTL      time.Duration `mapstructure:"tokenTTL"`
	RegisterRate  float64       `mapstructure:"registerRate"`
	RegisterBurst int           `mapstructure:"registerBurst"`
	PublicRate    float64       `mapstructure:"publicRate"`
	PublicBurst   int           `mapstructure:"publicBurst"`
}

func DefaultInvitePolicy() InvitePolicy {
	return InvitePolicy{
		TokenTTL:      30 * 24 * time.Hour,
		RegisterRate:  0.2,
		RegisterBurst: 5,
		PublicRate:    5,
		PublicBurst:   30,
	}
}

type InvitePolicyHolder struct {
	current atomic.Value // holds InvitePolicy
}

// NewStaticInvitePolicyHolder returns a holder that never reloads.
func NewStaticInvitePolicyHolder(policy InvitePolicy) *InvitePolicyHolder {
	holder := &InvitePolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewInvitePolicyHolder() (*InvitePolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("metalid")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/metalid")
	v.AddConfigPath(".")

	v.SetEnvPrefix("METALID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultInvitePolicy()
	v.SetDefault("invite.tokenTTL", defaults.TokenTTL.String())
	v.SetDefault("invite.registerRate", defaults.RegisterRate)
	v.SetDefault("invite.registerBurst", defaults.RegisterBurst)
	v.SetDefault("invite.publicRate", defaults.PublicRate)
	v.SetDefault("invite.publicBurst", defaults.PublicBurst)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var policy InvitePolicy
	if err := v.UnmarshalKey("invite", &policy); err != nil {
		return nil, err
	}
	if err := validateInvitePolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticInvitePolicyHolder(policy)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated InvitePolicy
		if err := v.UnmarshalKey("invite", &updated); err != nil {
			zap.L().Warn("invite policy reload failed", zap.Error(err))
			return
		}
		if err := validateInvitePolicy(updated); err != nil {
			zap.L().Warn("invalid invite policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("invite policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *InvitePolicyHolder) Get() InvitePolicy {
	if h == nil {
		return DefaultInvitePolicy()
	}
	return h.current.Load().(InvitePolicy)
}

func validateInvitePolicy(policy InvitePolicy) error {
	if policy.TokenTTL <= 0 {
		return errors.New("invite.tokenTTL must be positive")
	}
	if policy.RegisterRate <= 0 || policy.RegisterBurst <= 0 {
		return errors.New("invite.registerRate and invite.registerBurst must be positive")
	}
	if policy.PublicRate <= 0 || policy.PublicBurst <= 0 {
		return errors.New("invite.publicRate and invite.publicBurst must be positive")
	}
	return nil
}
