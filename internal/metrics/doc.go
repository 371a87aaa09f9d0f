// Package metrics provides the Prometheus collectors of the bot.
package metrics
