// Command encoderbot runs the encoder Telegram bot.
//
// The configuration file is read from $CONFIG_PATH, falling back to config.yaml.
package main

import (
	"log"

	"github.com/m3rciful/encoderbot/core/cmd"
	"github.com/m3rciful/encoderbot/internal/bot"
)

func main() {
	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			cfg, err := bot.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: bot.Bootstrap,
	})
	if err != nil {
		log.Fatalf("encoderbot: %v", err)
	}
}
