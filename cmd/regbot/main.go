package main

import (
	"fmt"
	"log"

	"github.com/m3rciful/regbot/core/bootstrap"
	corecmd "github.com/m3rciful/regbot/core/cmd"
	coreredis "github.com/m3rciful/regbot/core/redis"
	"github.com/m3rciful/regbot/internal/bot"
	appconfig "github.com/m3rciful/regbot/internal/config"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return appconfig.Load(path)
		},
		Bootstrap: func(c corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg, ok := c.(*appconfig.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", c)
			}
			redisCfg := coreredis.Config{}
			if cfg.Registration.Store == appconfig.StoreRedis {
				redisCfg = cfg.Redis
			}
			infra, err := bootstrap.Run(bootstrap.Options{
				Config:   cfg.CoreConfig(),
				Database: cfg.Database,
				Redis:    redisCfg,
			})
			if err != nil {
				return nil, err
			}
			app, err := bot.New(cfg, infra)
			if err != nil {
				infra.Close()
				return nil, err
			}
			return app, nil
		},
	})
	if err != nil {
		log.Fatalf("regbot: %v", err)
	}
}
