// Package config holds the linkspider configuration: defaults, validation,
// the optional YAML configuration file and the XDG directories used for
// the crawl history database.
package config
